package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("invalid file type"), http.StatusBadRequest},
		{"not found", NotFound("post not found"), http.StatusNotFound},
		{"auth", Auth("invalid credentials"), http.StatusUnauthorized},
		{"storage", Storage("delete", errors.New("boom")), http.StatusInternalServerError},
		{"upload", Upload("put", errors.New("boom")), http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("create post: %w", Validation("title is required")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestMessageHidesInternals(t *testing.T) {
	err := Storage("put object media/a.png", errors.New("connection refused to 10.0.0.7"))
	assert.Equal(t, "internal server error", Message(err))
	assert.False(t, Expected(err))

	assert.Equal(t, "file too large", Message(fmt.Errorf("upload: %w", Validation("file too large"))))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Upload("local put", cause)
	assert.ErrorIs(t, err, ErrUpload)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "local put")
}

package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dockerx/cms/internal/apperr"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func TestOK(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, map[string]string{"title": "hello"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	env := decode(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]interface{}{"title": "hello"}, env.Data)
}

func TestErrClientErrorsAreNotLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rr := httptest.NewRecorder()

	Err(rr, zap.New(core), apperr.Validation("invalid file type"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid file type", decode(t, rr).Error)
	assert.Zero(t, logs.Len())
}

func TestErrServerErrorsAreLoggedAndHidden(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rr := httptest.NewRecorder()

	Err(rr, zap.New(core), apperr.Storage("put object", errors.New("dial tcp 10.1.2.3:9000: refused")))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", decode(t, rr).Error)
	assert.Equal(t, 1, logs.Len())
}

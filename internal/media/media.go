// Package media persists the records that point at stored blobs.
package media

import (
	"context"
	"time"

	"github.com/dockerx/cms/internal/apperr"
)

// Media is one stored file. BackendPath is the provider-relative object key.
type Media struct {
	ID          string     `json:"id"`
	BackendPath string     `json:"backendPath"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// ErrNotFound is returned when a media row does not exist.
var ErrNotFound = &apperr.Error{Kind: apperr.ErrNotFound, Msg: "media not found"}

// Store is the persistence contract for media rows.
type Store interface {
	GetAll(ctx context.Context) ([]Media, error)
	GetByID(ctx context.Context, id string) (*Media, error)
	// Create assigns ID and CreatedAt when they are empty.
	Create(ctx context.Context, m *Media) error
	// Update stamps UpdatedAt.
	Update(ctx context.Context, m *Media) error
	Delete(ctx context.Context, id string) error
}

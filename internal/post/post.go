// Package post manages posts, their optional media and the HTTP handlers that
// expose them.
package post

import (
	"context"
	"time"

	"github.com/dockerx/cms/internal/apperr"
)

// Post is a published entry. JSONMeta always holds valid JSON text.
type Post struct {
	ID        string
	Title     string
	MediaID   *string
	PublicID  int64
	JSONMeta  string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = &apperr.Error{Kind: apperr.ErrNotFound, Msg: "post not found"}

// Store is the persistence contract for posts.
type Store interface {
	GetAll(ctx context.Context) ([]Post, error)
	// GetPage returns up to limit posts, newest first, and the total count.
	GetPage(ctx context.Context, offset, limit int) ([]Post, int, error)
	GetByID(ctx context.Context, id string) (*Post, error)
	GetByPublicID(ctx context.Context, publicID int64) (*Post, error)
	// Create assigns ID, CreatedAt and PublicID.
	Create(ctx context.Context, p *Post) error
	// Update stamps UpdatedAt.
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id string) error
}

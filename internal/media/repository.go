package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores media rows in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectMedia = `SELECT id, backend_path, created_at, updated_at FROM media`

func (r *Repository) GetAll(ctx context.Context) ([]Media, error) {
	rows, err := r.db.Query(ctx, selectMedia+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Media, error) {
		return scanMedia(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// GetByID fetches a media row by its UUID. Malformed ids are reported as not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*Media, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	m, err := scanMedia(r.db.QueryRow(ctx, selectMedia+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media by id: %w", err)
	}
	return &m, nil
}

func (r *Repository) Create(ctx context.Context, m *Media) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO media (id, backend_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		m.ID, m.BackendPath, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, m *Media) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE media SET backend_path = $2, updated_at = $3 WHERE id = $1`,
		m.ID, m.BackendPath, now,
	)
	if err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	m.UpdatedAt = &now
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMedia(row pgx.Row) (Media, error) {
	var m Media
	err := row.Scan(&m.ID, &m.BackendPath, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

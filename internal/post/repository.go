package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dockerx/cms/internal/apperr"
)

// Repository stores posts in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectPost = `SELECT id, title, media_id, public_id, json_meta::text, created_at, updated_at FROM posts`

func (r *Repository) GetAll(ctx context.Context) ([]Post, error) {
	rows, err := r.db.Query(ctx, selectPost+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return collectPosts(rows)
}

func (r *Repository) GetPage(ctx context.Context, offset, limit int) ([]Post, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	rows, err := r.db.Query(ctx, selectPost+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("page posts: %w", err)
	}
	items, err := collectPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID fetches a post by its UUID. Malformed ids are reported as not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*Post, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, "get post by id", selectPost+` WHERE id = $1`, id)
}

func (r *Repository) GetByPublicID(ctx context.Context, publicID int64) (*Post, error) {
	return r.getOne(ctx, "get post by public id", selectPost+` WHERE public_id = $1`, publicID)
}

func (r *Repository) getOne(ctx context.Context, op, query string, arg any) (*Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO posts (id, title, media_id, json_meta, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)
		 RETURNING public_id`,
		p.ID, p.Title, p.MediaID, p.JSONMeta, p.CreatedAt,
	).Scan(&p.PublicID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Validation("referenced media does not exist")
		}
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, p *Post) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE posts SET title = $2, media_id = $3, json_meta = $4::jsonb, updated_at = $5
		 WHERE id = $1`,
		p.ID, p.Title, p.MediaID, p.JSONMeta, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Validation("referenced media does not exist")
		}
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = &now
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectPosts(rows pgx.Rows) ([]Post, error) {
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Post, error) {
		return scanPost(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan posts: %w", err)
	}
	return items, nil
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Title, &p.MediaID, &p.PublicID, &p.JSONMeta, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// isForeignKeyViolation checks whether an error is a PostgreSQL foreign_key_violation (code 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

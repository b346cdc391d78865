package post

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dockerx/cms/internal/apperr"
	"github.com/dockerx/cms/internal/db"
	"github.com/dockerx/cms/internal/media"
)

func runStoreSuite(t *testing.T, store Store, mediaStore media.Store) {
	ctx := context.Background()

	m := &media.Media{BackendPath: uuid.NewString() + ".png"}
	require.NoError(t, mediaStore.Create(ctx, m))

	p := &Post{Title: "store test", MediaID: &m.ID, JSONMeta: `{"k":"v"}`}
	require.NoError(t, store.Create(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Positive(t, p.PublicID)

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "store test", got.Title)
	require.NotNil(t, got.MediaID)
	assert.Equal(t, m.ID, *got.MediaID)
	assert.JSONEq(t, `{"k":"v"}`, got.JSONMeta)

	byPublic, err := store.GetByPublicID(ctx, p.PublicID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byPublic.ID)

	next := &Post{Title: "second", JSONMeta: "{}"}
	require.NoError(t, store.Create(ctx, next))
	assert.Greater(t, next.PublicID, p.PublicID)

	got.Title = "renamed"
	got.MediaID = nil
	require.NoError(t, store.Update(ctx, got))
	require.NotNil(t, got.UpdatedAt)

	items, total, err := store.GetPage(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.GreaterOrEqual(t, total, 2)

	require.NoError(t, store.Delete(ctx, p.ID))
	require.NoError(t, store.Delete(ctx, next.ID))
	_, err = store.GetByID(ctx, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, p.ID), ErrNotFound))
	assert.True(t, errors.Is(store.Update(ctx, &Post{ID: uuid.NewString(), Title: "x", JSONMeta: "{}"}), ErrNotFound))

	require.NoError(t, mediaStore.Delete(ctx, m.ID))
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore(), media.NewMemoryStore())
}

func TestRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	log := zaptest.NewLogger(t)
	require.NoError(t, db.Migrate(url, log))

	pool, err := db.Connect(context.Background(), url, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runStoreSuite(t, NewRepository(pool), media.NewRepository(pool))

	missing := uuid.NewString()
	err = NewRepository(pool).Create(context.Background(), &Post{Title: "fk", MediaID: &missing, JSONMeta: "{}"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/amaumene/watchqueue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectionTimestamps(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "o1", "a")
	env.addItem(t, "o1", "b")

	env.append(t, "a", models.EventAdded)
	added := env.clock.Now()
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventWatched)
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventRemoved)
	env.append(t, "a", models.EventRestored)
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventWatched)
	watched := env.clock.Now()

	all, err := NewProjection(env.log).Timestamps(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, all, 2)

	a := all["a"]
	require.NotNil(t, a.LastAddedAt)
	require.NotNil(t, a.LastWatchedAt)
	require.NotNil(t, a.LastRemovedAt)
	assert.True(t, a.LastAddedAt.Equal(added))
	assert.True(t, a.LastWatchedAt.Equal(watched))
	assert.Nil(t, a.LastFavoritedAt)

	assert.Equal(t, models.DerivedTimestamps{}, all["b"])
}

func TestProjectionMatchesSelectColumns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addItem(t, "o1", "a")
	env.append(t, "a", models.EventAdded)
	env.clock.Advance(time.Minute)
	env.append(t, "a", models.EventFavorited)

	var row struct {
		ID              string
		LastAddedAt     *int64
		LastWatchedAt   *int64
		LastFavoritedAt *int64
		LastRemovedAt   *int64
	}
	err := env.db.Conn(ctx).Table("items").Select("items.id, "+SelectColumns()).Where("items.id = ?", "a").Scan(&row).Error
	require.NoError(t, err)

	projected, err := NewProjection(env.log).Timestamps(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, projected["a"], FromColumns(row.LastAddedAt, row.LastWatchedAt, row.LastFavoritedAt, row.LastRemovedAt))
}

func TestColumnFor(t *testing.T) {
	assert.Equal(t, "last_watched_at", ColumnFor(models.EventWatched))
	assert.Empty(t, ColumnFor(models.EventTagged))
}

func TestProjectionEmpty(t *testing.T) {
	env := newTestEnv(t)
	all, err := NewProjection(env.log).Timestamps(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

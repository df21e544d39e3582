package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	db      *models.Database
	log     *Log
	clock   *fakeClock
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := models.NewDatabase(":memory:", models.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)}
	m := metrics.New()
	return &testEnv{db: db, log: NewLog(db, clock.Now, m), clock: clock, metrics: m}
}

func (e *testEnv) addItem(t *testing.T, ownerID, itemID string) {
	t.Helper()
	require.NoError(t, e.db.Conn(context.Background()).Create(&models.Item{ID: itemID, OwnerID: ownerID, Title: itemID}).Error)
}

func (e *testEnv) append(t *testing.T, itemID string, eventType models.EventType) {
	t.Helper()
	err := e.db.Transaction(context.Background(), func(tx *gorm.DB) error {
		_, err := e.log.Append(context.Background(), tx, itemID, eventType)
		return err
	})
	require.NoError(t, err)
}

func TestAppendValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.log.Append(ctx, env.db.Conn(ctx), "", models.EventAdded)
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = env.log.Append(ctx, env.db.Conn(ctx), "a", models.EventType("shared"))
	assert.ErrorIs(t, err, utils.ErrValidation)

	var count int64
	require.NoError(t, env.db.Conn(ctx).Model(&models.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAppendCountsMetric(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "o1", "a")

	env.append(t, "a", models.EventAdded)
	env.append(t, "a", models.EventAdded)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.EventsAppended.WithLabelValues("added")))
}

func TestLatestOfReturnsMostRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addItem(t, "o1", "a")

	latest, err := env.log.LatestOf(ctx, "a", models.EventWatched)
	require.NoError(t, err)
	assert.Nil(t, latest)

	env.append(t, "a", models.EventWatched)
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventUnwatched)
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventWatched)

	latest, err = env.log.LatestOf(ctx, "a", models.EventWatched)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(env.clock.Now()), "got %s", latest)
}

func TestCountInWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addItem(t, "o1", "a")
	env.addItem(t, "o1", "b")
	env.addItem(t, "o2", "c")

	env.append(t, "a", models.EventAdded)
	env.clock.Advance(48 * time.Hour)
	env.append(t, "b", models.EventAdded)
	env.append(t, "c", models.EventAdded)

	all, err := env.log.CountInWindow(ctx, "o1", models.EventAdded, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)

	recent, err := env.log.CountInWindow(ctx, "o1", models.EventAdded, env.clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), recent)

	// Events of hard-deleted items are no longer reachable
	require.NoError(t, env.db.Conn(ctx).Delete(&models.Item{ID: "b"}).Error)
	recent, err = env.log.CountInWindow(ctx, "o1", models.EventAdded, env.clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, recent)
}

func TestHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "o1", "a")

	env.append(t, "a", models.EventAdded)
	env.clock.Advance(time.Minute)
	env.append(t, "a", models.EventFavorited)
	env.append(t, "a", models.EventWatched)

	events, err := env.log.History(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventWatched, events[0].Type)
	assert.Equal(t, models.EventFavorited, events[1].Type)
	assert.Equal(t, models.EventAdded, events[2].Type)
}

func TestSinceFiltersOwnerTypeAndTime(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "o1", "a")
	env.addItem(t, "o2", "b")

	env.append(t, "a", models.EventAdded)
	start := env.clock.Now().Add(time.Minute)
	env.clock.Advance(time.Hour)
	env.append(t, "a", models.EventWatched)
	env.append(t, "a", models.EventFavorited)
	env.append(t, "b", models.EventWatched)

	events, err := env.log.Since(context.Background(), "o1", start, models.EventAdded, models.EventWatched)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ItemID)
	assert.Equal(t, models.EventWatched, events[0].Type)
}

func TestHasEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addItem(t, "o1", "a")

	seen, err := env.log.HasEvents(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, seen)

	env.append(t, "a", models.EventAdded)

	seen, err = env.log.HasEvents(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = env.log.HasEvents(ctx, "o2")
	require.NoError(t, err)
	assert.False(t, seen)
}

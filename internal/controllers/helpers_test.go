package controllers

import (
	"context"
	"testing"
	"time"

	"github.com/amaumene/watchqueue/internal/eventlog"
	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/ordering"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	ctrl   *ItemController
	db     *models.Database
	engine *ordering.Engine
	log    *eventlog.Log
	stats  *stats.Aggregator
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := models.NewDatabase(":memory:", models.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)}
	m := metrics.New()
	log := eventlog.NewLog(db, clock.Now, m)
	engine := ordering.NewEngine(db, ordering.NewOwnerLocks(), m, zerolog.Nop())
	agg := stats.NewAggregator(db, log, stats.Options{Now: clock.Now, CacheTTL: time.Minute, Metrics: m, Logger: zerolog.Nop()})

	return &testEnv{
		ctrl:   NewItemController(db, log, eventlog.NewProjection(log), engine, agg, m, 50, zerolog.Nop()),
		db:     db,
		engine: engine,
		log:    log,
		stats:  agg,
		clock:  clock,
	}
}

// add creates an item and advances the clock so events get distinct times
func (e *testEnv) add(t *testing.T, title string, opts ...func(*CreateItemInput)) *models.Item {
	t.Helper()
	in := CreateItemInput{Title: title}
	for _, opt := range opts {
		opt(&in)
	}
	item, err := e.ctrl.CreateItem(context.Background(), owner, in)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	return item
}

func withDuration(seconds int) func(*CreateItemInput) {
	return func(in *CreateItemInput) { in.Duration = seconds }
}

func atEnd(in *CreateItemInput) { in.AtEnd = true }

// queue returns the titles of the owner's active items in manual order
func (e *testEnv) queue(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	ids, err := e.engine.Domain(ctx, e.db.Conn(ctx), owner)
	require.NoError(t, err)

	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		var item models.Item
		require.NoError(t, e.db.Conn(ctx).First(&item, "id = ?", id).Error)
		titles = append(titles, item.Title)
	}
	return titles
}

func (e *testEnv) history(t *testing.T, itemID string) []models.EventType {
	t.Helper()
	entries, err := e.ctrl.History(context.Background(), owner, itemID)
	require.NoError(t, err)
	types := make([]models.EventType, len(entries))
	for i, h := range entries {
		types[i] = h.Type
	}
	return types
}

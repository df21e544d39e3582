package stats

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/watchqueue/internal/eventlog"
	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ActivityDays is the length of the activity series
const ActivityDays = 30

// Counts are current-state counts over the owner's active items
type Counts struct {
	Total     int64
	ByType    map[models.MediaType]int64
	Watched   int64
	Unwatched int64
	Favorites int64
	Shorts    int64
	Channels  int64
	Tags      int64
}

// Usage counts events recorded within the selected period
type Usage struct {
	Added     int64
	Watched   int64
	Favorited int64
	Removed   int64
	Tagged    int64
}

// PlayTime sums item durations in seconds.
//
// ThisWeek and ThisMonth use calendar windows (week starting Sunday, month to
// date) while Period uses the rolling window of the selected period. They answer
// different questions and are kept separate.
type PlayTime struct {
	TotalSeconds     int64
	AverageSeconds   int64
	ThisWeekSeconds  int64
	ThisMonthSeconds int64
	PeriodSeconds    int64
}

// ActivityPoint is one day of the activity series
type ActivityPoint struct {
	Day     time.Time
	Added   int
	Watched int
}

// Date returns the day as YYYY-MM-DD
func (p ActivityPoint) Date() string {
	return p.Day.Format("2006-01-02")
}

// Dashboard is the full stats payload for one owner and period
type Dashboard struct {
	Period   Period
	Counts   Counts
	Usage    Usage
	PlayTime PlayTime
	Activity []ActivityPoint
}

// Aggregator computes dashboard statistics from the item store and event log
type Aggregator struct {
	db       *models.Database
	log      *eventlog.Log
	location *time.Location
	now      func() time.Time
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	// generations counts invalidations per owner; a result computed across an
	// invalidation is not cached
	mu          sync.Mutex
	generations map[string]uint64
}

// Options configures an Aggregator
type Options struct {
	Location *time.Location
	Now      func() time.Time
	// CacheTTL enables a per-owner result cache; zero disables it
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// NewAggregator creates a stats aggregator
func NewAggregator(db *models.Database, log *eventlog.Log, opts Options) *Aggregator {
	a := &Aggregator{
		db:          db,
		log:         log,
		location:    opts.Location,
		now:         opts.Now,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		generations: make(map[string]uint64),
	}
	if a.location == nil {
		a.location = time.UTC
	}
	if a.now == nil {
		a.now = time.Now
	}
	if opts.CacheTTL > 0 {
		a.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return a
}

// Invalidate drops cached dashboards of an owner. Called after every mutation.
func (a *Aggregator) Invalidate(ownerID string) {
	if a.cache == nil {
		return
	}
	a.mu.Lock()
	a.generations[ownerID]++
	a.mu.Unlock()
	for _, p := range Periods {
		a.cache.Delete(cacheKey(ownerID, p))
	}
}

// Dashboard returns counts, usage, play time and the activity series.
// An owner without items gets zeros and an empty series.
func (a *Aggregator) Dashboard(ctx context.Context, ownerID string, period Period) (*Dashboard, error) {
	if !period.Valid() {
		return nil, utils.Validationf("unknown period %q", period)
	}

	key := cacheKey(ownerID, period)
	var generation uint64
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			a.observeCache("hit")
			return cached.(*Dashboard), nil
		}
		a.observeCache("miss")
		generation = a.generation(ownerID)
	}

	now := a.now()
	d := &Dashboard{Period: period}

	var err error
	if d.Counts, err = a.counts(ctx, ownerID); err != nil {
		return nil, err
	}
	if d.Usage, err = a.usage(ctx, ownerID, period.Since(now)); err != nil {
		return nil, err
	}
	if d.PlayTime, err = a.playTime(ctx, ownerID, now, period); err != nil {
		return nil, err
	}
	if d.Activity, err = a.activity(ctx, ownerID, now); err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.store(ownerID, key, generation, d)
	}
	a.logger.Debug().Str("owner_id", ownerID).Str("period", string(period)).Msg("Dashboard stats computed")
	return d, nil
}

func (a *Aggregator) counts(ctx context.Context, ownerID string) (Counts, error) {
	var row struct {
		Total     int64
		Watched   int64
		Favorites int64
		Shorts    int64
		Channels  int64
	}
	err := a.db.Conn(ctx).Model(&models.Item{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN watched THEN 1 ELSE 0 END), 0) AS watched,
			COALESCE(SUM(CASE WHEN favorite THEN 1 ELSE 0 END), 0) AS favorites,
			COALESCE(SUM(CASE WHEN is_short THEN 1 ELSE 0 END), 0) AS shorts,
			COUNT(DISTINCT NULLIF(channel_id, '')) AS channels`).
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Scan(&row).Error
	if err != nil {
		return Counts{}, utils.Persistence("count items", err)
	}

	counts := Counts{
		Total:     row.Total,
		ByType:    make(map[models.MediaType]int64),
		Watched:   row.Watched,
		Unwatched: row.Total - row.Watched,
		Favorites: row.Favorites,
		Shorts:    row.Shorts,
		Channels:  row.Channels,
	}

	var byType []struct {
		MediaType models.MediaType
		Count     int64
	}
	err = a.db.Conn(ctx).Model(&models.Item{}).
		Select("media_type, COUNT(*) AS count").
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Group("media_type").
		Scan(&byType).Error
	if err != nil {
		return Counts{}, utils.Persistence("count items by type", err)
	}
	for _, t := range byType {
		counts.ByType[t.MediaType] = t.Count
	}

	err = a.db.Conn(ctx).Model(&models.ItemTag{}).
		Select("COUNT(DISTINCT item_tags.tag_id)").
		Joins("JOIN items ON items.id = item_tags.item_id").
		Where("items.owner_id = ? AND items.is_deleted = ?", ownerID, false).
		Scan(&counts.Tags).Error
	if err != nil {
		return Counts{}, utils.Persistence("count tags", err)
	}

	return counts, nil
}

var usageTypes = []models.EventType{
	models.EventAdded,
	models.EventWatched,
	models.EventFavorited,
	models.EventRemoved,
	models.EventTagged,
}

func (a *Aggregator) usage(ctx context.Context, ownerID string, since time.Time) (Usage, error) {
	counts := make(map[models.EventType]int64, len(usageTypes))
	for _, t := range usageTypes {
		n, err := a.log.CountInWindow(ctx, ownerID, t, since)
		if err != nil {
			return Usage{}, err
		}
		counts[t] = n
	}
	return Usage{
		Added:     counts[models.EventAdded],
		Watched:   counts[models.EventWatched],
		Favorited: counts[models.EventFavorited],
		Removed:   counts[models.EventRemoved],
		Tagged:    counts[models.EventTagged],
	}, nil
}

func (a *Aggregator) playTime(ctx context.Context, ownerID string, now time.Time, period Period) (PlayTime, error) {
	var lifetime struct {
		Seconds int64
		Items   int64
	}
	err := a.db.Conn(ctx).Model(&models.Item{}).
		Select("COALESCE(SUM(duration_seconds), 0) AS seconds, COUNT(*) AS items").
		Where("owner_id = ? AND is_deleted = ? AND watched = ?", ownerID, false, true).
		Scan(&lifetime).Error
	if err != nil {
		return PlayTime{}, utils.Persistence("sum play time", err)
	}

	pt := PlayTime{TotalSeconds: lifetime.Seconds}
	if lifetime.Items > 0 {
		pt.AverageSeconds = lifetime.Seconds / lifetime.Items
	}

	local := now.In(a.location)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	weekStart := startOfDay.AddDate(0, 0, -int(startOfDay.Weekday()))
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, a.location)

	if pt.ThisWeekSeconds, err = a.watchedSecondsSince(ctx, ownerID, weekStart); err != nil {
		return PlayTime{}, err
	}
	if pt.ThisMonthSeconds, err = a.watchedSecondsSince(ctx, ownerID, monthStart); err != nil {
		return PlayTime{}, err
	}
	if pt.PeriodSeconds, err = a.watchedSecondsSince(ctx, ownerID, period.Since(now)); err != nil {
		return PlayTime{}, err
	}
	return pt, nil
}

// watchedSecondsSince sums durations of distinct items with a watched event at or
// after since. A zero since means no bound.
func (a *Aggregator) watchedSecondsSince(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	var from int64
	if !since.IsZero() {
		from = since.UTC().UnixMilli()
	}

	var seconds int64
	err := a.db.Conn(ctx).Model(&models.Item{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("owner_id = ?", ownerID).
		Where("id IN (SELECT item_id FROM events WHERE type = ? AND occurred_at >= ?)", models.EventWatched, from).
		Scan(&seconds).Error
	if err != nil {
		return 0, utils.Persistence("sum windowed play time", err)
	}
	return seconds, nil
}

func (a *Aggregator) activity(ctx context.Context, ownerID string, now time.Time) ([]ActivityPoint, error) {
	local := now.In(a.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.location)
	first := today.AddDate(0, 0, -(ActivityDays - 1))

	events, err := a.log.Since(ctx, ownerID, first, models.EventAdded, models.EventWatched)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		// Owners without any history get no series; older history still gets 30 zero days
		seen, err := a.log.HasEvents(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if !seen {
			return []ActivityPoint{}, nil
		}
	}

	points := make([]ActivityPoint, ActivityDays)
	index := make(map[string]int, ActivityDays)
	for i := range points {
		points[i].Day = first.AddDate(0, 0, i)
		index[points[i].Date()] = i
	}

	for _, e := range events {
		i, ok := index[e.Time().In(a.location).Format("2006-01-02")]
		if !ok {
			continue
		}
		switch e.Type {
		case models.EventAdded:
			points[i].Added++
		case models.EventWatched:
			points[i].Watched++
		}
	}
	return points, nil
}

func (a *Aggregator) generation(ownerID string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[ownerID]
}

// store caches d unless the owner was invalidated since generation was read
func (a *Aggregator) store(ownerID, key string, generation uint64, d *Dashboard) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generations[ownerID] != generation {
		return
	}
	a.cache.SetDefault(key, d)
}

func (a *Aggregator) observeCache(result string) {
	if a.metrics != nil {
		a.metrics.StatsCache.WithLabelValues(result).Inc()
	}
}

func cacheKey(ownerID string, p Period) string {
	return ownerID + "|" + string(p)
}

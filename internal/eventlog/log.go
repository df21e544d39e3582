package eventlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"gorm.io/gorm"
)

// Log is the append-only event store
type Log struct {
	db      *models.Database
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewLog creates an event log. now defaults to time.Now when nil.
func NewLog(db *models.Database, now func() time.Time, m *metrics.Metrics) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{db: db, now: now, metrics: m}
}

// Append records an event at the current time inside tx. Callers pass the
// transaction that carries the state change the event documents.
func (l *Log) Append(ctx context.Context, tx *gorm.DB, itemID string, eventType models.EventType) (uint64, error) {
	if itemID == "" {
		return 0, utils.Validationf("event item id is empty")
	}
	if !eventType.Valid() {
		return 0, utils.Validationf("unknown event type %q", eventType)
	}

	event := models.Event{
		ItemID:     itemID,
		Type:       eventType,
		OccurredAt: l.now().UTC().UnixMilli(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return 0, utils.Persistence("append event", err)
	}

	if l.metrics != nil {
		l.metrics.EventsAppended.WithLabelValues(string(eventType)).Inc()
	}
	return event.ID, nil
}

// LatestOf returns the most recent occurrence of eventType for an item, or nil
func (l *Log) LatestOf(ctx context.Context, itemID string, eventType models.EventType) (*time.Time, error) {
	var latest sql.NullInt64
	err := l.db.Conn(ctx).Model(&models.Event{}).
		Select("MAX(occurred_at)").
		Where("item_id = ? AND type = ?", itemID, eventType).
		Scan(&latest).Error
	if err != nil {
		return nil, utils.Persistence("query latest event", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := time.UnixMilli(latest.Int64).UTC()
	return &t, nil
}

// CountInWindow counts events of a type on the owner's items since the given time.
// A zero since means no lower bound. Events of hard-deleted items are not counted.
func (l *Log) CountInWindow(ctx context.Context, ownerID string, eventType models.EventType, since time.Time) (int64, error) {
	var count int64
	q := l.db.Conn(ctx).Model(&models.Event{}).
		Joins("JOIN items ON items.id = events.item_id").
		Where("items.owner_id = ? AND events.type = ?", ownerID, eventType)
	if !since.IsZero() {
		q = q.Where("events.occurred_at >= ?", since.UTC().UnixMilli())
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, utils.Persistence("count events", err)
	}
	return count, nil
}

// HasEvents reports whether any event was ever recorded on the owner's items
func (l *Log) HasEvents(ctx context.Context, ownerID string) (bool, error) {
	var count int64
	err := l.db.Conn(ctx).Model(&models.Event{}).
		Joins("JOIN items ON items.id = events.item_id").
		Where("items.owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return false, utils.Persistence("check events", err)
	}
	return count > 0, nil
}

// History returns every event recorded for an item, newest first
func (l *Log) History(ctx context.Context, itemID string) ([]models.Event, error) {
	var events []models.Event
	err := l.db.Conn(ctx).
		Where("item_id = ?", itemID).
		Order("occurred_at DESC, id DESC").
		Find(&events).Error
	if err != nil {
		return nil, utils.Persistence("load item history", err)
	}
	return events, nil
}

// Since returns the owner's events of the given types that occurred at or after since,
// oldest first.
func (l *Log) Since(ctx context.Context, ownerID string, since time.Time, types ...models.EventType) ([]models.Event, error) {
	var events []models.Event
	err := l.db.Conn(ctx).
		Select("events.*").
		Joins("JOIN items ON items.id = events.item_id").
		Where("items.owner_id = ? AND events.type IN ? AND events.occurred_at >= ?", ownerID, types, since.UTC().UnixMilli()).
		Order("events.occurred_at ASC, events.id ASC").
		Find(&events).Error
	if err != nil {
		return nil, utils.Persistence("load events", err)
	}
	return events, nil
}

package models

import "time"

// Event is an immutable record of a state transition applied to an item.
// Rows are never updated or deleted; events of hard-deleted items stay orphaned.
type Event struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ItemID     string    `gorm:"not null;type:text;index:idx_events_item_type,priority:1"`
	Type       EventType `gorm:"not null;index:idx_events_item_type,priority:2;index:idx_events_type_time,priority:1"`
	OccurredAt int64     `gorm:"not null;index:idx_events_type_time,priority:2"` // UTC unix milliseconds
}

// Time returns the occurrence time in UTC
func (e Event) Time() time.Time {
	return time.UnixMilli(e.OccurredAt).UTC()
}

package models

import "time"

// Item represents a media item in an owner's queue
type Item struct {
	ID      string `gorm:"primaryKey;type:text"`
	OwnerID string `gorm:"not null;index:idx_items_owner_order,priority:1"`

	Title        string    `gorm:"not null"`
	SearchTitle  string    `gorm:"index"` // Folded title used by text search
	URL          string
	ThumbnailURL string
	ChannelID    string    `gorm:"index"`
	MediaType    MediaType `gorm:"not null;default:video"`
	IsShort      bool
	Duration     int `gorm:"column:duration_seconds;not null;default:0"`

	// State
	Watched     bool        `gorm:"not null;default:false"`
	WatchStatus WatchStatus `gorm:"not null;default:unwatched"`
	Favorite    bool        `gorm:"not null;default:false"`
	Priority    Priority    `gorm:"not null;default:none"`
	LikeStatus  LikeStatus  `gorm:"not null;default:none"`
	IsDeleted   bool        `gorm:"not null;default:false;index"`

	// Manual position. Only authoritative while the item is not deleted.
	CustomOrder *int `gorm:"index:idx_items_owner_order,priority:2"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetWatchStatus updates the status and keeps Watched in sync with it
func (i *Item) SetWatchStatus(s WatchStatus) {
	i.WatchStatus = s
	i.Watched = s == WatchStatusWatched
}

// ItemTag links an item to a tag owned by the tag subsystem
type ItemTag struct {
	ItemID string `gorm:"primaryKey;type:text"`
	TagID  string `gorm:"primaryKey;type:text;index"`
}

// DerivedTimestamps holds the most recent occurrence of the tracked event types.
// Nil means no event of that type was ever recorded.
type DerivedTimestamps struct {
	LastAddedAt     *time.Time
	LastWatchedAt   *time.Time
	LastFavoritedAt *time.Time
	LastRemovedAt   *time.Time
}

// Set stores t as the timestamp for the given event type, ignoring untracked types
func (d *DerivedTimestamps) Set(t EventType, at time.Time) {
	switch t {
	case EventAdded:
		d.LastAddedAt = &at
	case EventWatched:
		d.LastWatchedAt = &at
	case EventFavorited:
		d.LastFavoritedAt = &at
	case EventRemoved:
		d.LastRemovedAt = &at
	}
}

// ItemView is the read model returned by list queries
type ItemView struct {
	Item
	DerivedTimestamps
	TagIDs []string
}

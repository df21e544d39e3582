// Package timeline buckets list results into calendar-day groups for display.
package timeline

import (
	"sort"
	"time"

	"github.com/amaumene/watchqueue/internal/models"
)

// Date-based sort fields the grouper understands
const (
	FieldDateAdded     = "date_added"
	FieldDateWatched   = "date_watched"
	FieldDateFavorited = "date_favorited"
	FieldDateRemoved   = "date_removed"
)

const (
	labelAllItems = "All Items"
	labelNoDate   = "No Date"

	fullDayLayout = "Monday January 2, 2006"
	dayLayout     = "January 2, 2006"
	dayKeyLayout  = "2006-01-02"
)

// Group is one bucket of items sharing a calendar day
type Group struct {
	Label string
	// DayKey is the start of the day in the grouper's location; zero for the
	// "All Items" and no-date buckets.
	DayKey time.Time
	Items  []models.ItemView
}

// Key returns the day as YYYY-MM-DD, or "" for synthetic buckets
func (g Group) Key() string {
	if g.DayKey.IsZero() {
		return ""
	}
	return g.DayKey.Format(dayKeyLayout)
}

// Grouper groups items by the calendar day of a derived timestamp.
// Days are computed in Location, which must stay stable: the bucket an item
// lands in around midnight depends on it.
type Grouper struct {
	Location *time.Location
	Now      func() time.Time
}

// NewGrouper creates a grouper for the given location (UTC when nil)
func NewGrouper(loc *time.Location, now func() time.Time) *Grouper {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Grouper{Location: loc, Now: now}
}

// IsDateField reports whether field is one of the grouping fields
func IsDateField(field string) bool {
	switch field {
	case FieldDateAdded, FieldDateWatched, FieldDateFavorited, FieldDateRemoved:
		return true
	}
	return false
}

// GroupByDate buckets items by the day of field. Items are expected to be sorted
// by that field already; their relative order is kept inside each bucket.
// Day buckets are ordered by day ("asc" oldest first, anything else newest first)
// and the bucket of items without the timestamp always comes last.
func (g *Grouper) GroupByDate(items []models.ItemView, field, order string) []Group {
	if !IsDateField(field) {
		return []Group{{Label: labelAllItems, Items: items}}
	}

	today := g.dayKey(g.Now())
	yesterday := today.AddDate(0, 0, -1)

	var groups []Group
	byKey := make(map[time.Time]int)
	var undated []models.ItemView

	for _, item := range items {
		ts := timestampFor(item.DerivedTimestamps, field)
		if ts == nil {
			undated = append(undated, item)
			continue
		}

		key := g.dayKey(*ts)
		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, Group{Label: label(key, today, yesterday), DayKey: key})
		}
		groups[idx].Items = append(groups[idx].Items, item)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if order == "asc" {
			return groups[i].DayKey.Before(groups[j].DayKey)
		}
		return groups[i].DayKey.After(groups[j].DayKey)
	})

	if len(undated) > 0 {
		groups = append(groups, Group{Label: NoDateLabel(field), Items: undated})
	}
	return groups
}

func (g *Grouper) dayKey(t time.Time) time.Time {
	local := t.In(g.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.Location)
}

func label(key, today, yesterday time.Time) string {
	switch {
	case key.Equal(today):
		return "today (" + key.Format(fullDayLayout) + ")"
	case key.Equal(yesterday):
		return "yesterday (" + key.Format(fullDayLayout) + ")"
	default:
		return key.Format(dayLayout)
	}
}

// NoDateLabel returns the bucket label for items lacking the field's timestamp
func NoDateLabel(field string) string {
	switch field {
	case FieldDateWatched:
		return "Not Yet Watched"
	case FieldDateFavorited:
		return "Not Favorited"
	case FieldDateRemoved:
		return "Not Removed"
	default:
		return labelNoDate
	}
}

func timestampFor(ts models.DerivedTimestamps, field string) *time.Time {
	switch field {
	case FieldDateAdded:
		return ts.LastAddedAt
	case FieldDateWatched:
		return ts.LastWatchedAt
	case FieldDateFavorited:
		return ts.LastFavoritedAt
	case FieldDateRemoved:
		return ts.LastRemovedAt
	}
	return nil
}

package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
)

// Tracked lists the event types projected into derived timestamps, with the
// column alias each one gets in list queries.
var Tracked = []struct {
	Type   models.EventType
	Column string
}{
	{models.EventAdded, "last_added_at"},
	{models.EventWatched, "last_watched_at"},
	{models.EventFavorited, "last_favorited_at"},
	{models.EventRemoved, "last_removed_at"},
}

// ColumnFor returns the derived column alias for an event type, or "" if untracked
func ColumnFor(t models.EventType) string {
	for _, tr := range Tracked {
		if tr.Type == t {
			return tr.Column
		}
	}
	return ""
}

// SelectColumns returns correlated subqueries computing every derived timestamp
// for the rows of the items table, for use in a SELECT list. The values are unix
// milliseconds (NULL when absent) so they can be used directly in ORDER BY.
func SelectColumns() string {
	parts := make([]string, 0, len(Tracked))
	for _, tr := range Tracked {
		parts = append(parts, fmt.Sprintf(
			"(SELECT MAX(e.occurred_at) FROM events e WHERE e.item_id = items.id AND e.type = '%s') AS %s",
			tr.Type, tr.Column))
	}
	return strings.Join(parts, ", ")
}

// Projection computes derived timestamps from the event log. It never writes.
type Projection struct {
	log *Log
}

// NewProjection creates a projection over the given log
func NewProjection(log *Log) *Projection {
	return &Projection{log: log}
}

// Timestamps returns the derived timestamps for each requested item using one
// aggregate query. Items without any tracked event map to an empty set.
func (p *Projection) Timestamps(ctx context.Context, itemIDs []string) (map[string]models.DerivedTimestamps, error) {
	result := make(map[string]models.DerivedTimestamps, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	types := make([]models.EventType, 0, len(Tracked))
	for _, tr := range Tracked {
		types = append(types, tr.Type)
	}

	var rows []struct {
		ItemID string
		Type   models.EventType
		Latest int64
	}
	err := p.log.db.Conn(ctx).Model(&models.Event{}).
		Select("item_id, type, MAX(occurred_at) AS latest").
		Where("item_id IN ? AND type IN ?", itemIDs, types).
		Group("item_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.Persistence("project timestamps", err)
	}

	for _, id := range itemIDs {
		result[id] = models.DerivedTimestamps{}
	}
	for _, row := range rows {
		ts := result[row.ItemID]
		ts.Set(row.Type, time.UnixMilli(row.Latest).UTC())
		result[row.ItemID] = ts
	}
	return result, nil
}

// FromColumns builds a derived timestamp set from the nullable millisecond values
// produced by SelectColumns.
func FromColumns(added, watched, favorited, removed *int64) models.DerivedTimestamps {
	var ts models.DerivedTimestamps
	set := func(t models.EventType, v *int64) {
		if v != nil {
			ts.Set(t, time.UnixMilli(*v).UTC())
		}
	}
	set(models.EventAdded, added)
	set(models.EventWatched, watched)
	set(models.EventFavorited, favorited)
	set(models.EventRemoved, removed)
	return ts
}

package controllers

import (
	"context"
	"strings"

	"github.com/amaumene/watchqueue/internal/eventlog"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"gorm.io/gorm"
)

// Sort fields accepted by ListItems
const (
	SortCustom        = "custom"
	SortDateAdded     = "date_added"
	SortDateWatched   = "date_watched"
	SortDateFavorited = "date_favorited"
	SortDateRemoved   = "date_removed"
	SortTitle         = "title"
	SortDuration      = "duration"
	SortPriority      = "priority"
	SortFavorite      = "favorite"
	SortCreatedAt     = "created_at"
)

// ListQuery holds filters, sort and pagination for ListItems.
// Nil pointers and empty strings mean "no filter".
type ListQuery struct {
	Watched     *bool
	WatchStatus models.WatchStatus `validate:"omitempty,oneof=unwatched pending watched"`
	Favorite    *bool
	TagIDs      []string `validate:"dive,required"`
	ChannelIDs  []string `validate:"dive,required"`
	Deleted     bool
	Search      string           `validate:"max=200"`
	MediaType   models.MediaType `validate:"omitempty,oneof=video podcast"`
	IsShort     *bool
	LikeStatus  models.LikeStatus `validate:"omitempty,oneof=none like dislike"`
	Priority    models.Priority   `validate:"omitempty,oneof=none low medium high"`

	Sort   string `validate:"omitempty,oneof=custom date_added date_watched date_favorited date_removed title duration priority favorite created_at"`
	Order  string `validate:"omitempty,oneof=asc desc"`
	Limit  int    `validate:"gte=0,lte=500"`
	Offset int    `validate:"gte=0"`
}

// ListResult is one page of items plus totals over every matching item
type ListResult struct {
	Items                []models.ItemView
	Total                int64
	TotalDurationSeconds int64
}

type itemRow struct {
	models.Item
	LastAddedAt     *int64
	LastWatchedAt   *int64
	LastFavoritedAt *int64
	LastRemovedAt   *int64
}

// ListItems returns a filtered, sorted page of the owner's items with derived
// timestamps attached. Total and TotalDurationSeconds cover all matches, not
// just the page.
func (c *ItemController) ListItems(ctx context.Context, ownerID string, q ListQuery) (result *ListResult, err error) {
	ctx, span := c.start(ctx, "ListItems", ownerID, "")
	defer func() { c.finish(span, "list_items", err) }()

	if err := c.validate.Struct(q); err != nil {
		return nil, utils.Validationf("%v", err)
	}
	if q.Limit == 0 {
		q.Limit = c.defaultPageSize
	}

	conn := c.db.Conn(ctx)

	var totals struct {
		Total         int64
		TotalDuration int64
	}
	err = conn.Table("items").
		Scopes(filterScope(ownerID, q)).
		Select("COUNT(*) AS total, COALESCE(SUM(duration_seconds), 0) AS total_duration").
		Scan(&totals).Error
	if err != nil {
		return nil, utils.Persistence("count items", err)
	}

	var rows []itemRow
	err = conn.Table("items").
		Select("items.*, " + eventlog.SelectColumns()).
		Scopes(filterScope(ownerID, q)).
		Order(orderClause(q.Sort, q.Order)).
		Limit(q.Limit).
		Offset(q.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, utils.Persistence("list items", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	tags, err := c.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	result = &ListResult{
		Items:                make([]models.ItemView, 0, len(rows)),
		Total:                totals.Total,
		TotalDurationSeconds: totals.TotalDuration,
	}
	for _, r := range rows {
		result.Items = append(result.Items, models.ItemView{
			Item:              r.Item,
			DerivedTimestamps: eventlog.FromColumns(r.LastAddedAt, r.LastWatchedAt, r.LastFavoritedAt, r.LastRemovedAt),
			TagIDs:            tags[r.ID],
		})
	}
	return result, nil
}

func (c *ItemController) tagsFor(ctx context.Context, itemIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var links []models.ItemTag
	err := c.db.Conn(ctx).Where("item_id IN ?", itemIDs).Order("tag_id").Find(&links).Error
	if err != nil {
		return nil, utils.Persistence("load item tags", err)
	}
	for _, l := range links {
		out[l.ItemID] = append(out[l.ItemID], l.TagID)
	}
	return out, nil
}

func filterScope(ownerID string, q ListQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("items.owner_id = ? AND items.is_deleted = ?", ownerID, q.Deleted)

		if q.Watched != nil {
			db = db.Where("items.watched = ?", *q.Watched)
		}
		if q.WatchStatus != "" {
			db = db.Where("items.watch_status = ?", q.WatchStatus)
		}
		if q.Favorite != nil {
			db = db.Where("items.favorite = ?", *q.Favorite)
		}
		if len(q.TagIDs) > 0 {
			db = db.Where("items.id IN (SELECT item_id FROM item_tags WHERE tag_id IN ?)", q.TagIDs)
		}
		if len(q.ChannelIDs) > 0 {
			db = db.Where("items.channel_id IN ?", q.ChannelIDs)
		}
		if search := utils.FoldTitle(q.Search); search != "" {
			db = db.Where("items.search_title LIKE ? ESCAPE '\\'", "%"+escapeLike(search)+"%")
		}
		if q.MediaType != "" {
			db = db.Where("items.media_type = ?", q.MediaType)
		}
		if q.IsShort != nil {
			db = db.Where("items.is_short = ?", *q.IsShort)
		}
		if q.LikeStatus != "" {
			db = db.Where("items.like_status = ?", q.LikeStatus)
		}
		if q.Priority != "" {
			db = db.Where("items.priority = ?", q.Priority)
		}
		return db
	}
}

// orderClause builds the ORDER BY for a sort field. Date fields sort on the
// derived columns with missing values last; ties fall back to newest first.
func orderClause(sort, order string) string {
	if sort == "" {
		sort = SortCustom
	}
	if order == "" {
		order = "asc"
		switch sort {
		case SortDateAdded, SortDateWatched, SortDateFavorited, SortDateRemoved, SortCreatedAt, SortPriority, SortFavorite:
			order = "desc"
		}
	}
	dir := strings.ToUpper(order)

	var expr string
	switch sort {
	case SortDateAdded:
		expr = "last_added_at"
	case SortDateWatched:
		expr = "last_watched_at"
	case SortDateFavorited:
		expr = "last_favorited_at"
	case SortDateRemoved:
		expr = "last_removed_at"
	case SortTitle:
		expr = "items.title COLLATE NOCASE"
	case SortDuration:
		expr = "items.duration_seconds"
	case SortPriority:
		expr = "CASE items.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"
	case SortFavorite:
		expr = "items.favorite"
	case SortCreatedAt:
		expr = "items.created_at"
	default:
		expr = "items.custom_order"
	}
	return expr + " " + dir + " NULLS LAST, items.created_at DESC, items.id ASC"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/watchqueue/internal/eventlog"
	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/ordering"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemController handles every state change of queue items. Each mutation runs
// in one transaction that updates the item, appends the matching event and runs
// the side effects registered for that event.
type ItemController struct {
	db              *models.Database
	log             *eventlog.Log
	projection      *eventlog.Projection
	engine          *ordering.Engine
	stats           *stats.Aggregator
	effects         effectTable
	validate        *validator.Validate
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	defaultPageSize int
	logger          zerolog.Logger
}

// NewItemController creates a new item controller
func NewItemController(
	db *models.Database,
	log *eventlog.Log,
	projection *eventlog.Projection,
	engine *ordering.Engine,
	aggregator *stats.Aggregator,
	m *metrics.Metrics,
	defaultPageSize int,
	logger zerolog.Logger,
) *ItemController {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	return &ItemController{
		db:              db,
		log:             log,
		projection:      projection,
		engine:          engine,
		stats:           aggregator,
		effects:         newEffectTable(engine),
		validate:        validator.New(),
		metrics:         m,
		tracer:          otel.Tracer("github.com/amaumene/watchqueue/internal/controllers"),
		defaultPageSize: defaultPageSize,
		logger:          logger,
	}
}

// CreateItemInput carries already-resolved metadata for a new item
type CreateItemInput struct {
	Title        string           `validate:"required,max=1000"`
	URL          string           `validate:"omitempty,url"`
	ThumbnailURL string           `validate:"omitempty,url"`
	ChannelID    string           `validate:"max=200"`
	MediaType    models.MediaType `validate:"omitempty,oneof=video podcast"`
	IsShort      bool
	Duration     int      `validate:"gte=0"`
	TagIDs       []string `validate:"dive,required"`
	// AtEnd appends the item to the back of the queue instead of the front
	AtEnd bool
}

func (c *ItemController) start(ctx context.Context, op, ownerID, itemID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "ItemController."+op, trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("item_id", itemID),
	))
}

func (c *ItemController) finish(span trace.Span, op string, err error) {
	if c.metrics != nil {
		c.metrics.ObserveOperation(op, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateItem adds a new item for the owner and records an added event
func (c *ItemController) CreateItem(ctx context.Context, ownerID string, in CreateItemInput) (item *models.Item, err error) {
	ctx, span := c.start(ctx, "CreateItem", ownerID, "")
	defer func() { c.finish(span, "create_item", err) }()

	if err := c.validateCreate(ownerID, in); err != nil {
		return nil, err
	}
	return c.createValidated(ctx, ownerID, in)
}

// CreateItems adds several items. All inputs are validated first; the writes
// are then applied one item at a time so each insertion sees the order left by
// the previous one. On failure the items created so far are returned with the error.
func (c *ItemController) CreateItems(ctx context.Context, ownerID string, inputs []CreateItemInput) (items []*models.Item, err error) {
	ctx, span := c.start(ctx, "CreateItems", ownerID, "")
	defer func() { c.finish(span, "create_items", err) }()

	for i, in := range inputs {
		if err := c.validateCreate(ownerID, in); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	items = make([]*models.Item, 0, len(inputs))
	for _, in := range inputs {
		item, err := c.createValidated(ctx, ownerID, in)
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *ItemController) validateCreate(ownerID string, in CreateItemInput) error {
	if ownerID == "" {
		return utils.Validationf("owner id is required")
	}
	if err := c.validate.Struct(in); err != nil {
		return utils.Validationf("%v", err)
	}
	return nil
}

func (c *ItemController) createValidated(ctx context.Context, ownerID string, in CreateItemInput) (*models.Item, error) {
	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = models.MediaTypeVideo
	}

	item := &models.Item{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        in.Title,
		SearchTitle:  utils.FoldTitle(in.Title),
		URL:          in.URL,
		ThumbnailURL: in.ThumbnailURL,
		ChannelID:    in.ChannelID,
		MediaType:    mediaType,
		IsShort:      in.IsShort,
		Duration:     in.Duration,
		WatchStatus:  models.WatchStatusUnwatched,
		Priority:     models.PriorityNone,
		LikeStatus:   models.LikeStatusNone,
	}

	unlock := c.engine.Locks().Lock(ownerID)
	defer unlock()

	err := c.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return utils.Persistence("create item", err)
		}
		if err := c.record(ctx, tx, models.EventAdded, change{OwnerID: ownerID, Item: item, AtEnd: in.AtEnd}); err != nil {
			return err
		}
		if len(in.TagIDs) > 0 {
			if _, err := c.attachTags(ctx, tx, item, in.TagIDs); err != nil {
				return err
			}
		}
		return reload(tx, item)
	})
	if err != nil {
		return nil, err
	}

	c.invalidate(ownerID)
	c.logger.Info().Str("owner_id", ownerID).Str("item_id", item.ID).Str("title", item.Title).Msg("Item added")
	return item, nil
}

// record appends the event and runs its side effects
func (c *ItemController) record(ctx context.Context, tx *gorm.DB, eventType models.EventType, ch change) error {
	if _, err := c.log.Append(ctx, tx, ch.Item.ID, eventType); err != nil {
		return err
	}
	return c.effects.run(ctx, tx, eventType, ch)
}

// mutation changes an item in memory and returns the event documenting the
// change. ok=false means the item already was in the requested state.
type mutation func(item *models.Item) (event models.EventType, ok bool, err error)

// mutate loads the owner's item, applies fn, persists it and records the event,
// all in one transaction under the owner's lock.
func (c *ItemController) mutate(ctx context.Context, op, ownerID, itemID string, fn mutation) (item *models.Item, err error) {
	ctx, span := c.start(ctx, op, ownerID, itemID)
	defer func() { c.finish(span, op, err) }()

	unlock := c.engine.Locks().Lock(ownerID)
	defer unlock()

	item = &models.Item{}
	changed := false
	err = c.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := loadItem(tx, ownerID, itemID, item); err != nil {
			return err
		}

		eventType, ok, err := fn(item)
		if err != nil || !ok {
			return err
		}
		changed = true

		if err := tx.Save(item).Error; err != nil {
			return utils.Persistence("update item", err)
		}
		if err := c.record(ctx, tx, eventType, change{OwnerID: ownerID, Item: item}); err != nil {
			return err
		}
		return reload(tx, item)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.invalidate(ownerID)
		c.logger.Debug().Str("owner_id", ownerID).Str("item_id", itemID).Str("operation", op).Msg("Item updated")
	}
	return item, nil
}

// SetWatchStatus moves an item to unwatched, pending or watched
func (c *ItemController) SetWatchStatus(ctx context.Context, ownerID, itemID string, status models.WatchStatus) (*models.Item, error) {
	return c.mutate(ctx, "set_watch_status", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		switch status {
		case models.WatchStatusUnwatched, models.WatchStatusPending, models.WatchStatusWatched:
		default:
			return "", false, utils.Validationf("unknown watch status %q", status)
		}
		if item.WatchStatus == status {
			return "", false, nil
		}
		item.SetWatchStatus(status)
		return models.EventForWatchStatus(status), true, nil
	})
}

// SetFavorite marks or unmarks an item as favorite
func (c *ItemController) SetFavorite(ctx context.Context, ownerID, itemID string, favorite bool) (*models.Item, error) {
	return c.mutate(ctx, "set_favorite", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		if item.Favorite == favorite {
			return "", false, nil
		}
		item.Favorite = favorite
		if favorite {
			return models.EventFavorited, true, nil
		}
		return models.EventUnfavorited, true, nil
	})
}

// SetLikeStatus sets like, dislike or resets it
func (c *ItemController) SetLikeStatus(ctx context.Context, ownerID, itemID string, status models.LikeStatus) (*models.Item, error) {
	return c.mutate(ctx, "set_like_status", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		switch status {
		case models.LikeStatusNone, models.LikeStatusLike, models.LikeStatusDislike:
		default:
			return "", false, utils.Validationf("unknown like status %q", status)
		}
		if item.LikeStatus == status {
			return "", false, nil
		}
		item.LikeStatus = status
		return models.EventForLike(status), true, nil
	})
}

// SetPriority changes an item's priority. Setting high moves the item to the
// front of the queue.
func (c *ItemController) SetPriority(ctx context.Context, ownerID, itemID string, priority models.Priority) (*models.Item, error) {
	return c.mutate(ctx, "set_priority", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		switch priority {
		case models.PriorityNone, models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		default:
			return "", false, utils.Validationf("unknown priority %q", priority)
		}
		if item.Priority == priority {
			return "", false, nil
		}
		item.Priority = priority
		return models.EventForPriority(priority), true, nil
	})
}

// SoftDelete marks an item deleted. Its history is kept and it leaves the queue order.
func (c *ItemController) SoftDelete(ctx context.Context, ownerID, itemID string) (*models.Item, error) {
	return c.mutate(ctx, "soft_delete", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		if item.IsDeleted {
			return "", false, nil
		}
		item.IsDeleted = true
		return models.EventRemoved, true, nil
	})
}

// Restore undoes a soft delete; the item re-enters the queue at the front
func (c *ItemController) Restore(ctx context.Context, ownerID, itemID string) (*models.Item, error) {
	return c.mutate(ctx, "restore", ownerID, itemID, func(item *models.Item) (models.EventType, bool, error) {
		if !item.IsDeleted {
			return "", false, nil
		}
		item.IsDeleted = false
		return models.EventRestored, true, nil
	})
}

// HardDelete erases an item and its tag links. Its events are left in the log
// unreachable; they are not cleaned up.
func (c *ItemController) HardDelete(ctx context.Context, ownerID, itemID string) (err error) {
	ctx, span := c.start(ctx, "HardDelete", ownerID, itemID)
	defer func() { c.finish(span, "hard_delete", err) }()

	unlock := c.engine.Locks().Lock(ownerID)
	defer unlock()

	err = c.db.Transaction(ctx, func(tx *gorm.DB) error {
		var item models.Item
		if err := loadItem(tx, ownerID, itemID, &item); err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", itemID).Delete(&models.ItemTag{}).Error; err != nil {
			return utils.Persistence("delete tag links", err)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return utils.Persistence("delete item", err)
		}
		if !item.IsDeleted {
			return c.engine.Compact(ctx, tx, ownerID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.invalidate(ownerID)
	c.logger.Info().Str("owner_id", ownerID).Str("item_id", itemID).Msg("Item permanently deleted")
	return nil
}

// AddTags links tags to an item. A tagged event is recorded when at least one
// link is new.
func (c *ItemController) AddTags(ctx context.Context, ownerID, itemID string, tagIDs []string) (err error) {
	ctx, span := c.start(ctx, "AddTags", ownerID, itemID)
	defer func() { c.finish(span, "add_tags", err) }()

	if len(tagIDs) == 0 {
		return utils.Validationf("no tags given")
	}
	if err := c.validate.Var(tagIDs, "dive,required"); err != nil {
		return utils.Validationf("%v", err)
	}

	unlock := c.engine.Locks().Lock(ownerID)
	defer unlock()

	var added int64
	err = c.db.Transaction(ctx, func(tx *gorm.DB) error {
		var item models.Item
		if err := loadItem(tx, ownerID, itemID, &item); err != nil {
			return err
		}
		n, err := c.attachTags(ctx, tx, &item, tagIDs)
		added = n
		return err
	})
	if err != nil {
		return err
	}
	if added > 0 {
		c.invalidate(ownerID)
	}
	return nil
}

// RemoveTags unlinks tags from an item. No event type documents untagging.
func (c *ItemController) RemoveTags(ctx context.Context, ownerID, itemID string, tagIDs []string) (err error) {
	ctx, span := c.start(ctx, "RemoveTags", ownerID, itemID)
	defer func() { c.finish(span, "remove_tags", err) }()

	err = c.db.Transaction(ctx, func(tx *gorm.DB) error {
		var item models.Item
		if err := loadItem(tx, ownerID, itemID, &item); err != nil {
			return err
		}
		err := tx.Where("item_id = ? AND tag_id IN ?", itemID, tagIDs).Delete(&models.ItemTag{}).Error
		return utils.Persistence("remove tag links", err)
	})
	if err != nil {
		return err
	}
	c.invalidate(ownerID)
	return nil
}

func (c *ItemController) attachTags(ctx context.Context, tx *gorm.DB, item *models.Item, tagIDs []string) (int64, error) {
	links := make([]models.ItemTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.ItemTag{ItemID: item.ID, TagID: id})
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links)
	if res.Error != nil {
		return 0, utils.Persistence("link tags", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	if err := c.record(ctx, tx, models.EventTagged, change{OwnerID: item.OwnerID, Item: item}); err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Reorder applies an explicit manual order. ids may be the whole queue or the
// subset shown by a filtered view.
func (c *ItemController) Reorder(ctx context.Context, ownerID string, ids []string) (err error) {
	ctx, span := c.start(ctx, "Reorder", ownerID, "")
	defer func() { c.finish(span, "reorder", err) }()
	return c.engine.Reorder(ctx, ownerID, ids)
}

// MoveToBeginning moves an item to the front of the queue
func (c *ItemController) MoveToBeginning(ctx context.Context, ownerID, itemID string) (err error) {
	ctx, span := c.start(ctx, "MoveToBeginning", ownerID, itemID)
	defer func() { c.finish(span, "move_to_beginning", err) }()
	return c.engine.MoveToBeginning(ctx, ownerID, itemID)
}

// MoveToEnd moves an item to the back of the queue
func (c *ItemController) MoveToEnd(ctx context.Context, ownerID, itemID string) (err error) {
	ctx, span := c.start(ctx, "MoveToEnd", ownerID, itemID)
	defer func() { c.finish(span, "move_to_end", err) }()
	return c.engine.MoveToEnd(ctx, ownerID, itemID)
}

// DerivedTimestamps returns the last added/watched/favorited/removed times of an item
func (c *ItemController) DerivedTimestamps(ctx context.Context, ownerID, itemID string) (models.DerivedTimestamps, error) {
	var item models.Item
	if err := loadItem(c.db.Conn(ctx), ownerID, itemID, &item); err != nil {
		return models.DerivedTimestamps{}, err
	}
	all, err := c.projection.Timestamps(ctx, []string{itemID})
	if err != nil {
		return models.DerivedTimestamps{}, err
	}
	return all[itemID], nil
}

// HistoryEntry is one event of an item's audit trail
type HistoryEntry struct {
	Type models.EventType
	At   time.Time
}

// History returns the event trail of an item, newest first
func (c *ItemController) History(ctx context.Context, ownerID, itemID string) ([]HistoryEntry, error) {
	var item models.Item
	if err := loadItem(c.db.Conn(ctx), ownerID, itemID, &item); err != nil {
		return nil, err
	}
	events, err := c.log.History(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, HistoryEntry{Type: e.Type, At: e.Time()})
	}
	return entries, nil
}

func (c *ItemController) invalidate(ownerID string) {
	if c.stats != nil {
		c.stats.Invalidate(ownerID)
	}
}

func loadItem(tx *gorm.DB, ownerID, itemID string, item *models.Item) error {
	if itemID == "" {
		return utils.ErrNotFound
	}
	err := tx.Where("id = ? AND owner_id = ?", itemID, ownerID).First(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("item %s: %w", itemID, utils.ErrNotFound)
	}
	return utils.Persistence("load item", err)
}

func reload(tx *gorm.DB, item *models.Item) error {
	return utils.Persistence("reload item", tx.First(item, "id = ?", item.ID).Error)
}

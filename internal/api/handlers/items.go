package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/watchqueue/internal/api/middleware"
	"github.com/amaumene/watchqueue/internal/controllers"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/timeline"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ItemHandler exposes the item controller over HTTP
type ItemHandler struct {
	items   *controllers.ItemController
	grouper *timeline.Grouper
	logger  zerolog.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(items *controllers.ItemController, grouper *timeline.Grouper, logger zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		items:   items,
		grouper: grouper,
		logger:  logger,
	}
}

// ItemResponse is the JSON shape of an item
type ItemResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	URL             string     `json:"url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	ChannelID       string     `json:"channel_id,omitempty"`
	MediaType       string     `json:"media_type"`
	IsShort         bool       `json:"is_short"`
	DurationSeconds int        `json:"duration_seconds"`
	Watched         bool       `json:"watched"`
	WatchStatus     string     `json:"watch_status"`
	Favorite        bool       `json:"favorite"`
	Priority        string     `json:"priority"`
	LikeStatus      string     `json:"like_status"`
	IsDeleted       bool       `json:"is_deleted"`
	CustomOrder     *int       `json:"custom_order"`
	TagIDs          []string   `json:"tag_ids,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastAddedAt     *time.Time `json:"last_added_at,omitempty"`
	LastWatchedAt   *time.Time `json:"last_watched_at,omitempty"`
	LastFavoritedAt *time.Time `json:"last_favorited_at,omitempty"`
	LastRemovedAt   *time.Time `json:"last_removed_at,omitempty"`
}

func newItemResponse(item models.Item) ItemResponse {
	return ItemResponse{
		ID:              item.ID,
		Title:           item.Title,
		URL:             item.URL,
		ThumbnailURL:    item.ThumbnailURL,
		ChannelID:       item.ChannelID,
		MediaType:       string(item.MediaType),
		IsShort:         item.IsShort,
		DurationSeconds: item.Duration,
		Watched:         item.Watched,
		WatchStatus:     string(item.WatchStatus),
		Favorite:        item.Favorite,
		Priority:        string(item.Priority),
		LikeStatus:      string(item.LikeStatus),
		IsDeleted:       item.IsDeleted,
		CustomOrder:     item.CustomOrder,
		CreatedAt:       item.CreatedAt,
	}
}

func newItemViewResponse(v models.ItemView) ItemResponse {
	r := newItemResponse(v.Item)
	r.TagIDs = v.TagIDs
	r.LastAddedAt = v.LastAddedAt
	r.LastWatchedAt = v.LastWatchedAt
	r.LastFavoritedAt = v.LastFavoritedAt
	r.LastRemovedAt = v.LastRemovedAt
	return r
}

// GroupResponse is one date bucket of a grouped listing
type GroupResponse struct {
	Label  string         `json:"label"`
	DayKey string         `json:"day_key,omitempty"`
	Items  []ItemResponse `json:"items"`
}

// ListResponse is the JSON shape of a list page
type ListResponse struct {
	Items                []ItemResponse  `json:"items,omitempty"`
	Groups               []GroupResponse `json:"groups,omitempty"`
	Total                int64           `json:"total"`
	TotalDurationSeconds int64           `json:"total_duration_seconds"`
}

// List handles GET /api/items
func (h *ItemHandler) List(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}

	result, err := h.items.ListItems(c.UserContext(), middleware.OwnerID(c), q)
	if err != nil {
		return err
	}

	resp := ListResponse{Total: result.Total, TotalDurationSeconds: result.TotalDurationSeconds}
	if c.QueryBool("group") {
		for _, g := range h.grouper.GroupByDate(result.Items, q.Sort, q.Order) {
			gr := GroupResponse{Label: g.Label, DayKey: g.Key(), Items: make([]ItemResponse, 0, len(g.Items))}
			for _, v := range g.Items {
				gr.Items = append(gr.Items, newItemViewResponse(v))
			}
			resp.Groups = append(resp.Groups, gr)
		}
		return c.JSON(resp)
	}

	resp.Items = make([]ItemResponse, 0, len(result.Items))
	for _, v := range result.Items {
		resp.Items = append(resp.Items, newItemViewResponse(v))
	}
	return c.JSON(resp)
}

// CreateItemRequest is the body of POST /api/items
type CreateItemRequest struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	ThumbnailURL    string   `json:"thumbnail_url"`
	ChannelID       string   `json:"channel_id"`
	MediaType       string   `json:"media_type"`
	IsShort         bool     `json:"is_short"`
	DurationSeconds int      `json:"duration_seconds"`
	TagIDs          []string `json:"tag_ids"`
	AtEnd           bool     `json:"at_end"`
}

// Input converts the request into controller input
func (r CreateItemRequest) Input() controllers.CreateItemInput {
	return controllers.CreateItemInput{
		Title:        r.Title,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		ChannelID:    r.ChannelID,
		MediaType:    models.MediaType(r.MediaType),
		IsShort:      r.IsShort,
		Duration:     r.DurationSeconds,
		TagIDs:       r.TagIDs,
		AtEnd:        r.AtEnd,
	}
}

// Create handles POST /api/items
func (h *ItemHandler) Create(c *fiber.Ctx) error {
	var req CreateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	item, err := h.items.CreateItem(c.UserContext(), middleware.OwnerID(c), req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newItemResponse(*item))
}

// CreateBatch handles POST /api/items/batch
func (h *ItemHandler) CreateBatch(c *fiber.Ctx) error {
	var reqs []CreateItemRequest
	if err := c.BodyParser(&reqs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	inputs := make([]controllers.CreateItemInput, 0, len(reqs))
	for _, r := range reqs {
		inputs = append(inputs, r.Input())
	}

	items, err := h.items.CreateItems(c.UserContext(), middleware.OwnerID(c), inputs)
	if err != nil {
		h.logger.Warn().Err(err).Int("created", len(items)).Msg("Batch add stopped early")
		return err
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, newItemResponse(*item))
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

type watchRequest struct {
	Status string `json:"status"`
}

// SetWatchStatus handles PUT /api/items/:id/watch
func (h *ItemHandler) SetWatchStatus(c *fiber.Ctx) error {
	var req watchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.items.SetWatchStatus(c.UserContext(), middleware.OwnerID(c), c.Params("id"), models.WatchStatus(req.Status))
	return h.itemResult(c, item, err)
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite handles PUT /api/items/:id/favorite
func (h *ItemHandler) SetFavorite(c *fiber.Ctx) error {
	var req favoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.items.SetFavorite(c.UserContext(), middleware.OwnerID(c), c.Params("id"), req.Favorite)
	return h.itemResult(c, item, err)
}

type likeRequest struct {
	Status string `json:"status"`
}

// SetLikeStatus handles PUT /api/items/:id/like
func (h *ItemHandler) SetLikeStatus(c *fiber.Ctx) error {
	var req likeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.items.SetLikeStatus(c.UserContext(), middleware.OwnerID(c), c.Params("id"), models.LikeStatus(req.Status))
	return h.itemResult(c, item, err)
}

type priorityRequest struct {
	Priority string `json:"priority"`
}

// SetPriority handles PUT /api/items/:id/priority
func (h *ItemHandler) SetPriority(c *fiber.Ctx) error {
	var req priorityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	item, err := h.items.SetPriority(c.UserContext(), middleware.OwnerID(c), c.Params("id"), models.Priority(req.Priority))
	return h.itemResult(c, item, err)
}

type tagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

// AddTags handles POST /api/items/:id/tags
func (h *ItemHandler) AddTags(c *fiber.Ctx) error {
	var req tagsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.items.AddTags(c.UserContext(), middleware.OwnerID(c), c.Params("id"), req.TagIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveTags handles DELETE /api/items/:id/tags
func (h *ItemHandler) RemoveTags(c *fiber.Ctx) error {
	var req tagsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.items.RemoveTags(c.UserContext(), middleware.OwnerID(c), c.Params("id"), req.TagIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete handles DELETE /api/items/:id (soft delete)
func (h *ItemHandler) Delete(c *fiber.Ctx) error {
	item, err := h.items.SoftDelete(c.UserContext(), middleware.OwnerID(c), c.Params("id"))
	return h.itemResult(c, item, err)
}

// Restore handles POST /api/items/:id/restore
func (h *ItemHandler) Restore(c *fiber.Ctx) error {
	item, err := h.items.Restore(c.UserContext(), middleware.OwnerID(c), c.Params("id"))
	return h.itemResult(c, item, err)
}

// Purge handles DELETE /api/items/:id/purge (hard delete)
func (h *ItemHandler) Purge(c *fiber.Ctx) error {
	if err := h.items.HardDelete(c.UserContext(), middleware.OwnerID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type reorderRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// Reorder handles PUT /api/items/order
func (h *ItemHandler) Reorder(c *fiber.Ctx) error {
	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.items.Reorder(c.UserContext(), middleware.OwnerID(c), req.ItemIDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MoveToBeginning handles POST /api/items/:id/move-to-beginning
func (h *ItemHandler) MoveToBeginning(c *fiber.Ctx) error {
	if err := h.items.MoveToBeginning(c.UserContext(), middleware.OwnerID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MoveToEnd handles POST /api/items/:id/move-to-end
func (h *ItemHandler) MoveToEnd(c *fiber.Ctx) error {
	if err := h.items.MoveToEnd(c.UserContext(), middleware.OwnerID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Timestamps handles GET /api/items/:id/timestamps
func (h *ItemHandler) Timestamps(c *fiber.Ctx) error {
	ts, err := h.items.DerivedTimestamps(c.UserContext(), middleware.OwnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"last_added_at":     ts.LastAddedAt,
		"last_watched_at":   ts.LastWatchedAt,
		"last_favorited_at": ts.LastFavoritedAt,
		"last_removed_at":   ts.LastRemovedAt,
	})
}

type historyEntry struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

// History handles GET /api/items/:id/history
func (h *ItemHandler) History(c *fiber.Ctx) error {
	entries, err := h.items.History(c.UserContext(), middleware.OwnerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntry{Type: string(e.Type), At: e.At})
	}
	return c.JSON(resp)
}

type suggestion struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Distance int    `json:"distance"`
}

// Suggest handles GET /api/items/suggest?q=
func (h *ItemHandler) Suggest(c *fiber.Ctx) error {
	found, err := h.items.Suggest(c.UserContext(), middleware.OwnerID(c), c.Query("q"), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	resp := make([]suggestion, 0, len(found))
	for _, s := range found {
		resp = append(resp, suggestion{ID: s.ItemID, Title: s.Title, Distance: s.Distance})
	}
	return c.JSON(resp)
}

func (h *ItemHandler) itemResult(c *fiber.Ctx, item *models.Item, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(newItemResponse(*item))
}

func parseListQuery(c *fiber.Ctx) (controllers.ListQuery, error) {
	q := controllers.ListQuery{
		WatchStatus: models.WatchStatus(c.Query("watch_status")),
		TagIDs:      splitList(c.Query("tags")),
		ChannelIDs:  splitList(c.Query("channels")),
		Search:      c.Query("search"),
		MediaType:   models.MediaType(c.Query("type")),
		LikeStatus:  models.LikeStatus(c.Query("like_status")),
		Priority:    models.Priority(c.Query("priority")),
		Sort:        c.Query("sort"),
		Order:       c.Query("order"),
	}

	var err error
	if q.Watched, err = optionalBool(c, "watched"); err != nil {
		return q, err
	}
	if q.Favorite, err = optionalBool(c, "favorite"); err != nil {
		return q, err
	}
	if q.IsShort, err = optionalBool(c, "short"); err != nil {
		return q, err
	}
	deleted, err := optionalBool(c, "deleted")
	if err != nil {
		return q, err
	}
	q.Deleted = deleted != nil && *deleted

	if q.Limit, err = optionalInt(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = optionalInt(c, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func optionalBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, utils.Validationf("%s must be a boolean", key)
	}
	return &v, nil
}

func optionalInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.Validationf("%s must be an integer", key)
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

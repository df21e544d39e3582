package api_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaumene/watchqueue/internal/api/handlers"
	"github.com/amaumene/watchqueue/internal/api/middleware"
	"github.com/amaumene/watchqueue/internal/app"
	"github.com/amaumene/watchqueue/internal/config"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		ServerPort:      "0",
		DatabaseFile:    ":memory:",
		Location:        time.UTC,
		TxMaxRetry:      time.Second,
		DefaultPageSize: 50,
		LogLevel:        "error",
		LogFormat:       "json",
	}
	application, cleanup, err := app.Initialize(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return application.Server.App()
}

func do(t *testing.T, a *fiber.App, method, path string, body any, ownerID string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerID != "" {
		req.Header.Set(middleware.OwnerHeader, ownerID)
	}

	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func create(t *testing.T, a *fiber.App, req handlers.CreateItemRequest) handlers.ItemResponse {
	t.Helper()
	status, data := do(t, a, http.MethodPost, "/api/items", req, owner)
	require.Equal(t, http.StatusCreated, status, string(data))
	var item handlers.ItemResponse
	require.NoError(t, json.Unmarshal(data, &item))
	return item
}

func list(t *testing.T, a *fiber.App, query string) handlers.ListResponse {
	t.Helper()
	status, data := do(t, a, http.MethodGet, "/api/items"+query, nil, owner)
	require.Equal(t, http.StatusOK, status, string(data))
	var resp handlers.ListResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	status, data := do(t, a, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(data))
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	create(t, a, handlers.CreateItemRequest{Title: "A"})

	status, data := do(t, a, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `watchqueue_events_appended_total{type="added"} 1`)
}

func TestAPIRequiresOwner(t *testing.T) {
	a := newTestApp(t)
	status, data := do(t, a, http.MethodGet, "/api/items", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(data), middleware.OwnerHeader)
}

func TestCreateAndList(t *testing.T) {
	a := newTestApp(t)
	first := create(t, a, handlers.CreateItemRequest{Title: "First", DurationSeconds: 100, TagIDs: []string{"t1"}})
	create(t, a, handlers.CreateItemRequest{Title: "Second", DurationSeconds: 250, MediaType: "podcast"})

	assert.Equal(t, "video", first.MediaType)
	assert.Equal(t, "unwatched", first.WatchStatus)

	resp := list(t, a, "")
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Second", resp.Items[0].Title)
	assert.Equal(t, int64(350), resp.TotalDurationSeconds)
	assert.Equal(t, []string{"t1"}, resp.Items[1].TagIDs)
	assert.NotNil(t, resp.Items[1].LastAddedAt)

	podcasts := list(t, a, "?type=podcast")
	require.Len(t, podcasts.Items, 1)
	assert.Equal(t, "Second", podcasts.Items[0].Title)

	// Another owner sees nothing
	status, data := do(t, a, http.MethodGet, "/api/items", nil, "owner-2")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"total":0,"total_duration_seconds":0}`, string(data))
}

func TestListGrouped(t *testing.T) {
	a := newTestApp(t)
	item := create(t, a, handlers.CreateItemRequest{Title: "A"})
	create(t, a, handlers.CreateItemRequest{Title: "B"})
	status, _ := do(t, a, http.MethodPut, "/api/items/"+item.ID+"/watch", map[string]string{"status": "watched"}, owner)
	require.Equal(t, http.StatusOK, status)

	resp := list(t, a, "?group=true&sort=date_watched")
	require.Len(t, resp.Groups, 2)
	assert.Contains(t, resp.Groups[0].Label, "today (")
	assert.Equal(t, "A", resp.Groups[0].Items[0].Title)
	assert.Equal(t, "Not Yet Watched", resp.Groups[1].Label)
	assert.Empty(t, resp.Items)

	all := list(t, a, "?group=true")
	require.Len(t, all.Groups, 1)
	assert.Equal(t, "All Items", all.Groups[0].Label)
}

func TestErrorMapping(t *testing.T) {
	a := newTestApp(t)
	item := create(t, a, handlers.CreateItemRequest{Title: "A"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown item", http.MethodPut, "/api/items/nope/favorite", map[string]bool{"favorite": true}, http.StatusNotFound},
		{"bad watch status", http.MethodPut, "/api/items/" + item.ID + "/watch", map[string]string{"status": "done"}, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/items", map[string]string{"url": "https://example.com"}, http.StatusBadRequest},
		{"bad filter", http.MethodGet, "/api/items?watched=maybe", nil, http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/api/items?sort=popularity", nil, http.StatusBadRequest},
		{"duplicate reorder", http.MethodPut, "/api/items/order", map[string][]string{"item_ids": {item.ID, item.ID}}, http.StatusBadRequest},
		{"bad period", http.MethodGet, "/api/stats?period=fortnight", nil, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := do(t, a, tt.method, tt.path, tt.body, owner)
			assert.Equal(t, tt.want, status, string(data))
			assert.Contains(t, string(data), `"error"`)
		})
	}
}

func TestItemLifecycle(t *testing.T) {
	a := newTestApp(t)
	first := create(t, a, handlers.CreateItemRequest{Title: "A"})
	second := create(t, a, handlers.CreateItemRequest{Title: "B"})
	base := "/api/items/" + first.ID

	status, _ := do(t, a, http.MethodPut, base+"/priority", map[string]string{"priority": "high"}, owner)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "A", list(t, a, "").Items[0].Title)

	status, _ = do(t, a, http.MethodPost, base+"/move-to-end", nil, owner)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, a, http.MethodPut, "/api/items/order", map[string][]string{"item_ids": {first.ID, second.ID}}, owner)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, a, http.MethodPut, base+"/like", map[string]string{"status": "like"}, owner)
	require.Equal(t, http.StatusOK, status)
	status, _ = do(t, a, http.MethodPost, base+"/tags", map[string][]string{"tag_ids": {"t1"}}, owner)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, a, http.MethodDelete, base+"/tags", map[string][]string{"tag_ids": {"t1"}}, owner)
	require.Equal(t, http.StatusNoContent, status)

	status, data := do(t, a, http.MethodDelete, base, nil, owner)
	require.Equal(t, http.StatusOK, status)
	var deleted handlers.ItemResponse
	require.NoError(t, json.Unmarshal(data, &deleted))
	assert.True(t, deleted.IsDeleted)
	assert.Len(t, list(t, a, "?deleted=true").Items, 1)

	status, _ = do(t, a, http.MethodPost, base+"/restore", nil, owner)
	require.Equal(t, http.StatusOK, status)

	status, data = do(t, a, http.MethodGet, base+"/timestamps", nil, owner)
	require.Equal(t, http.StatusOK, status)
	var ts map[string]*time.Time
	require.NoError(t, json.Unmarshal(data, &ts))
	assert.NotNil(t, ts["last_removed_at"])
	assert.Nil(t, ts["last_watched_at"])

	status, data = do(t, a, http.MethodGet, base+"/history", nil, owner)
	require.Equal(t, http.StatusOK, status)
	var history []struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &history))
	require.NotEmpty(t, history)
	assert.Equal(t, "added", history[len(history)-1].Type)

	status, _ = do(t, a, http.MethodDelete, base+"/purge", nil, owner)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, a, http.MethodGet, base+"/history", nil, owner)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBatchAndSuggest(t *testing.T) {
	a := newTestApp(t)
	status, data := do(t, a, http.MethodPost, "/api/items/batch", []handlers.CreateItemRequest{
		{Title: "Golang Generics Explained"},
		{Title: "Sourdough Basics"},
	}, owner)
	require.Equal(t, http.StatusCreated, status, string(data))

	status, data = do(t, a, http.MethodGet, "/api/items/suggest?q=generics", nil, owner)
	require.Equal(t, http.StatusOK, status)
	var found []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Golang Generics Explained", found[0].Title)
}

func TestStats(t *testing.T) {
	a := newTestApp(t)
	item := create(t, a, handlers.CreateItemRequest{Title: "A", DurationSeconds: 600})
	do(t, a, http.MethodPut, "/api/items/"+item.ID+"/watch", map[string]string{"status": "watched"}, owner)

	status, data := do(t, a, http.MethodGet, "/api/stats?period=day", nil, owner)
	require.Equal(t, http.StatusOK, status, string(data))

	var resp handlers.DashboardResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "day", resp.Period)
	assert.Equal(t, int64(1), resp.Counts.Total)
	assert.Equal(t, int64(1), resp.Counts.ByType["video"])
	assert.Equal(t, int64(1), resp.Usage.Watched)
	assert.Equal(t, int64(600), resp.PlayTime.TotalSeconds)
	assert.Equal(t, int64(600), resp.PlayTime.PeriodSeconds)
	assert.Len(t, resp.Activity, 30)
}

package controllers

import (
	"context"
	"testing"
	"time"

	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(result *ListResult) []string {
	out := make([]string, len(result.Items))
	for i, v := range result.Items {
		out[i] = v.Title
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestListTotalsCoverAllMatches(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "A", withDuration(100))
	env.add(t, "B", withDuration(250))
	env.add(t, "C", withDuration(500))

	result, err := env.ctrl.ListItems(context.Background(), owner, ListQuery{Limit: 1})
	require.NoError(t, err)

	assert.Len(t, result.Items, 1)
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, int64(850), result.TotalDurationSeconds)

	page, err := env.ctrl.ListItems(context.Background(), owner, ListQuery{Limit: 1, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(page))
}

func TestListTotalsFollowWatchedFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "A", withDuration(100))
	env.add(t, "B", withDuration(250))
	c := env.add(t, "C", withDuration(500))
	_, err := env.ctrl.SetWatchStatus(ctx, owner, c.ID, models.WatchStatusWatched)
	require.NoError(t, err)

	tests := []struct {
		name     string
		watched  *bool
		total    int64
		duration int64
	}{
		{"unwatched", boolPtr(false), 2, 350},
		{"watched", boolPtr(true), 1, 500},
		{"all", nil, 3, 850},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.ctrl.ListItems(ctx, owner, ListQuery{Watched: tt.watched, Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.total, result.Total)
			assert.Equal(t, tt.duration, result.TotalDurationSeconds)
		})
	}
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Café Racer", func(in *CreateItemInput) { in.ChannelID = "moto"; in.TagIDs = []string{"bikes"} })
	short := env.add(t, "Quick Tip", func(in *CreateItemInput) { in.IsShort = true; in.ChannelID = "tips" })
	pod := env.add(t, "Weekly Show", func(in *CreateItemInput) { in.MediaType = models.MediaTypePodcast })
	gone := env.add(t, "Old News")

	_, err := env.ctrl.SetWatchStatus(ctx, owner, short.ID, models.WatchStatusWatched)
	require.NoError(t, err)
	_, err = env.ctrl.SetFavorite(ctx, owner, pod.ID, true)
	require.NoError(t, err)
	_, err = env.ctrl.SetLikeStatus(ctx, owner, pod.ID, models.LikeStatusDislike)
	require.NoError(t, err)
	_, err = env.ctrl.SetPriority(ctx, owner, short.ID, models.PriorityLow)
	require.NoError(t, err)
	_, err = env.ctrl.SoftDelete(ctx, owner, gone.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		q    ListQuery
		want []string
	}{
		{"watched", ListQuery{Watched: boolPtr(true)}, []string{"Quick Tip"}},
		{"watch status", ListQuery{WatchStatus: models.WatchStatusUnwatched, Sort: SortTitle}, []string{"Café Racer", "Weekly Show"}},
		{"favorite", ListQuery{Favorite: boolPtr(true)}, []string{"Weekly Show"}},
		{"search ignores accents and case", ListQuery{Search: "CAFE"}, []string{"Café Racer"}},
		{"search escapes wildcards", ListQuery{Search: "%"}, []string{}},
		{"tags", ListQuery{TagIDs: []string{"bikes"}}, []string{"Café Racer"}},
		{"channels", ListQuery{ChannelIDs: []string{"tips", "moto"}, Sort: SortTitle}, []string{"Café Racer", "Quick Tip"}},
		{"media type", ListQuery{MediaType: models.MediaTypePodcast}, []string{"Weekly Show"}},
		{"shorts", ListQuery{IsShort: boolPtr(true)}, []string{"Quick Tip"}},
		{"like status", ListQuery{LikeStatus: models.LikeStatusDislike}, []string{"Weekly Show"}},
		{"priority", ListQuery{Priority: models.PriorityLow}, []string{"Quick Tip"}},
		{"deleted", ListQuery{Deleted: true}, []string{"Old News"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.ctrl.ListItems(ctx, owner, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(result))
			assert.Equal(t, int64(len(tt.want)), result.Total)
		})
	}
}

func TestListSorts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.add(t, "banana", withDuration(30))
	b := env.add(t, "Apple", withDuration(10))
	env.add(t, "cherry", withDuration(20))

	_, err := env.ctrl.SetWatchStatus(ctx, owner, a.ID, models.WatchStatusWatched)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	_, err = env.ctrl.SetWatchStatus(ctx, owner, b.ID, models.WatchStatusWatched)
	require.NoError(t, err)

	tests := []struct {
		name string
		q    ListQuery
		want []string
	}{
		{"custom by default", ListQuery{}, []string{"cherry", "Apple", "banana"}},
		{"title ignores case", ListQuery{Sort: SortTitle}, []string{"Apple", "banana", "cherry"}},
		{"duration", ListQuery{Sort: SortDuration}, []string{"Apple", "cherry", "banana"}},
		{"duration desc", ListQuery{Sort: SortDuration, Order: "desc"}, []string{"banana", "cherry", "Apple"}},
		{"date added newest first", ListQuery{Sort: SortDateAdded}, []string{"cherry", "Apple", "banana"}},
		{"date added oldest first", ListQuery{Sort: SortDateAdded, Order: "asc"}, []string{"banana", "Apple", "cherry"}},
		{"date watched keeps missing last", ListQuery{Sort: SortDateWatched}, []string{"Apple", "banana", "cherry"}},
		{"date watched asc keeps missing last", ListQuery{Sort: SortDateWatched, Order: "asc"}, []string{"banana", "Apple", "cherry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.ctrl.ListItems(ctx, owner, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(result))
		})
	}
}

func TestListAttachesDerivedTimestamps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.add(t, "A")
	_, err := env.ctrl.SetFavorite(ctx, owner, item.ID, true)
	require.NoError(t, err)

	result, err := env.ctrl.ListItems(ctx, owner, ListQuery{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	expected, err := env.ctrl.DerivedTimestamps(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, expected, result.Items[0].DerivedTimestamps)
	assert.NotNil(t, result.Items[0].LastFavoritedAt)
	assert.Nil(t, result.Items[0].LastWatchedAt)
}

func TestListRejectsBadQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, q := range []ListQuery{
		{Sort: "popularity"},
		{Order: "sideways"},
		{Limit: 501},
		{Offset: -1},
		{MediaType: "book"},
	} {
		_, err := env.ctrl.ListItems(ctx, owner, q)
		assert.ErrorIs(t, err, utils.ErrValidation, "%+v", q)
	}
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "items.custom_order ASC NULLS LAST, items.created_at DESC, items.id ASC", orderClause("", ""))
	assert.Equal(t, "last_watched_at DESC NULLS LAST, items.created_at DESC, items.id ASC", orderClause(SortDateWatched, ""))
	assert.Equal(t, "items.title COLLATE NOCASE ASC NULLS LAST, items.created_at DESC, items.id ASC", orderClause(SortTitle, "asc"))
}

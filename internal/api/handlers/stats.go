package handlers

import (
	"github.com/amaumene/watchqueue/internal/api/middleware"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// StatsHandler serves the dashboard statistics
type StatsHandler struct {
	aggregator *stats.Aggregator
	logger     zerolog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(aggregator *stats.Aggregator, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{aggregator: aggregator, logger: logger}
}

type activityPoint struct {
	Date    string `json:"date"`
	Added   int    `json:"added"`
	Watched int    `json:"watched"`
}

// DashboardResponse is the JSON shape of the stats dashboard
type DashboardResponse struct {
	Period string `json:"period"`
	Counts struct {
		Total     int64            `json:"total"`
		ByType    map[string]int64 `json:"by_type"`
		Watched   int64            `json:"watched"`
		Unwatched int64            `json:"unwatched"`
		Favorites int64            `json:"favorites"`
		Shorts    int64            `json:"shorts"`
		Channels  int64            `json:"channels"`
		Tags      int64            `json:"tags"`
	} `json:"counts"`
	Usage struct {
		Added     int64 `json:"added"`
		Watched   int64 `json:"watched"`
		Favorited int64 `json:"favorited"`
		Removed   int64 `json:"removed"`
		Tagged    int64 `json:"tagged"`
	} `json:"usage"`
	PlayTime struct {
		TotalSeconds     int64 `json:"total_seconds"`
		AverageSeconds   int64 `json:"average_seconds"`
		ThisWeekSeconds  int64 `json:"this_week_seconds"`
		ThisMonthSeconds int64 `json:"this_month_seconds"`
		PeriodSeconds    int64 `json:"period_seconds"`
	} `json:"play_time"`
	Activity []activityPoint `json:"activity"`
}

func newDashboardResponse(d *stats.Dashboard) DashboardResponse {
	var r DashboardResponse
	r.Period = string(d.Period)

	r.Counts.Total = d.Counts.Total
	r.Counts.ByType = make(map[string]int64, len(d.Counts.ByType))
	for t, n := range d.Counts.ByType {
		r.Counts.ByType[string(t)] = n
	}
	r.Counts.Watched = d.Counts.Watched
	r.Counts.Unwatched = d.Counts.Unwatched
	r.Counts.Favorites = d.Counts.Favorites
	r.Counts.Shorts = d.Counts.Shorts
	r.Counts.Channels = d.Counts.Channels
	r.Counts.Tags = d.Counts.Tags

	r.Usage.Added = d.Usage.Added
	r.Usage.Watched = d.Usage.Watched
	r.Usage.Favorited = d.Usage.Favorited
	r.Usage.Removed = d.Usage.Removed
	r.Usage.Tagged = d.Usage.Tagged

	r.PlayTime.TotalSeconds = d.PlayTime.TotalSeconds
	r.PlayTime.AverageSeconds = d.PlayTime.AverageSeconds
	r.PlayTime.ThisWeekSeconds = d.PlayTime.ThisWeekSeconds
	r.PlayTime.ThisMonthSeconds = d.PlayTime.ThisMonthSeconds
	r.PlayTime.PeriodSeconds = d.PlayTime.PeriodSeconds

	r.Activity = make([]activityPoint, 0, len(d.Activity))
	for _, p := range d.Activity {
		r.Activity = append(r.Activity, activityPoint{Date: p.Date(), Added: p.Added, Watched: p.Watched})
	}
	return r
}

// Get handles GET /api/stats?period=
func (h *StatsHandler) Get(c *fiber.Ctx) error {
	period := stats.Period(c.Query("period", string(stats.PeriodWeek)))
	d, err := h.aggregator.Dashboard(c.UserContext(), middleware.OwnerID(c), period)
	if err != nil {
		return err
	}
	return c.JSON(newDashboardResponse(d))
}

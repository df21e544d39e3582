package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the dashboard statistics of an owner",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("owner", "", "owner identity (required)")
	statsCmd.Flags().String("period", string(stats.PeriodWeek), "usage period (day, week, month, year, total)")
	statsCmd.MarkFlagRequired("owner")
}

func runStats(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	period, _ := cmd.Flags().GetString("period")

	application, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	d, err := application.Stats.Dashboard(cmd.Context(), owner, stats.Period(period))
	if err != nil {
		return err
	}
	printDashboard(cmd.OutOrStdout(), d)
	return nil
}

func printDashboard(w io.Writer, d *stats.Dashboard) {
	fmt.Fprintf(w, "Items:        %s\n", humanize.Comma(d.Counts.Total))
	types := make([]string, 0, len(d.Counts.ByType))
	for t := range d.Counts.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-10s  %s\n", t, humanize.Comma(d.Counts.ByType[models.MediaType(t)]))
	}
	fmt.Fprintf(w, "Watched:      %s\n", humanize.Comma(d.Counts.Watched))
	fmt.Fprintf(w, "Unwatched:    %s\n", humanize.Comma(d.Counts.Unwatched))
	fmt.Fprintf(w, "Favorites:    %s\n", humanize.Comma(d.Counts.Favorites))
	fmt.Fprintf(w, "Shorts:       %s\n", humanize.Comma(d.Counts.Shorts))
	fmt.Fprintf(w, "Channels:     %s\n", humanize.Comma(d.Counts.Channels))
	fmt.Fprintf(w, "Tags:         %s\n", humanize.Comma(d.Counts.Tags))

	fmt.Fprintf(w, "\nLast %s:\n", d.Period)
	fmt.Fprintf(w, "  added       %s\n", humanize.Comma(d.Usage.Added))
	fmt.Fprintf(w, "  watched     %s\n", humanize.Comma(d.Usage.Watched))
	fmt.Fprintf(w, "  favorited   %s\n", humanize.Comma(d.Usage.Favorited))
	fmt.Fprintf(w, "  removed     %s\n", humanize.Comma(d.Usage.Removed))
	fmt.Fprintf(w, "  tagged      %s\n", humanize.Comma(d.Usage.Tagged))

	fmt.Fprintf(w, "\nPlay time:\n")
	fmt.Fprintf(w, "  total       %s\n", seconds(d.PlayTime.TotalSeconds))
	fmt.Fprintf(w, "  average     %s\n", seconds(d.PlayTime.AverageSeconds))
	fmt.Fprintf(w, "  this week   %s\n", seconds(d.PlayTime.ThisWeekSeconds))
	fmt.Fprintf(w, "  this month  %s\n", seconds(d.PlayTime.ThisMonthSeconds))
	fmt.Fprintf(w, "  period      %s\n", seconds(d.PlayTime.PeriodSeconds))

	if len(d.Activity) > 0 {
		fmt.Fprintf(w, "\nActivity (%d days):\n", len(d.Activity))
		for _, p := range d.Activity {
			if p.Added == 0 && p.Watched == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s  +%d added  %d watched\n", p.Date(), p.Added, p.Watched)
		}
	}
}

func seconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}

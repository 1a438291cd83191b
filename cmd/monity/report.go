package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rzayevsahil/Monity/internal/config"
	"github.com/rzayevsahil/Monity/internal/database"
	"github.com/rzayevsahil/Monity/internal/observer"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/rzayevsahil/Monity/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var (
	reportDate        string
	reportFrom        string
	reportTo          string
	reportHourly      bool
	reportTrend       bool
	reportIncludeIdle bool
	reportIgnored     bool
	reportCategory    string
	reportExclude     []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recorded usage",
	Long:  `Show per-application usage for a day or a date range, with optional hourly histogram and daily trend.`,
	Example: `  monity report
  monity report --date 2026-08-30 --hourly
  monity report --from 2026-08-01 --to 2026-08-31 --trend
  monity report --category Games --include-idle`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Report date (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Range start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Range end date (YYYY-MM-DD)")
	reportCmd.Flags().BoolVar(&reportHourly, "hourly", false, "Show the per-hour histogram")
	reportCmd.Flags().BoolVar(&reportTrend, "trend", false, "Show per-day totals for the range")
	reportCmd.Flags().BoolVar(&reportIncludeIdle, "include-idle", false, "Count idle sessions too")
	reportCmd.Flags().BoolVar(&reportIgnored, "include-ignored", false, "Show apps hidden with 'monity apps ignore'")
	reportCmd.Flags().StringVar(&reportCategory, "category", "", "Only apps in this category (\"uncategorized\" for apps without one)")
	reportCmd.Flags().StringSliceVar(&reportExclude, "exclude", nil, "Process names to leave out")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	// Old rows may predate display name resolution.
	if err := store.Apps().BackfillDisplayNames(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: display name backfill failed: %v\n", err)
	}

	filter := reportFilter()

	if reportFrom != "" || reportTo != "" {
		if reportFrom == "" || reportTo == "" {
			return fmt.Errorf("--from and --to must be given together")
		}
		if err := validateDate(reportFrom); err != nil {
			return err
		}
		if err := validateDate(reportTo); err != nil {
			return err
		}
		return printRangeReport(ctx, store, reportFrom, reportTo, filter)
	}

	date := reportDate
	if date == "" {
		date = time.Now().Format(storage.DateFormat)
	}
	if err := validateDate(date); err != nil {
		return err
	}
	return printDailyReport(ctx, store, date, filter)
}

func openReportStore() (storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := sqlite.New(db, observer.DisplayNameFromExe, zerolog.Nop())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

func reportFilter() storage.Filter {
	f := storage.Filter{
		ExcludeIdle:       !reportIncludeIdle,
		ExcludedProcesses: reportExclude,
		IncludeIgnored:    reportIgnored,
	}
	switch reportCategory {
	case "":
	case "uncategorized":
		empty := ""
		f.Category = &empty
	default:
		c := reportCategory
		f.Category = &c
	}
	return f
}

func printDailyReport(ctx context.Context, store storage.Store, date string, f storage.Filter) error {
	usage := store.Usage()

	total, err := usage.DailyTotal(ctx, date, f)
	if err != nil {
		return fmt.Errorf("failed to read daily total: %w", err)
	}
	apps, err := usage.DailyUsage(ctx, date, f)
	if err != nil {
		return fmt.Errorf("failed to read daily usage: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Usage for %s\n\n", date)

	if total.TotalSeconds == 0 {
		fmt.Println("No usage recorded.")
		return nil
	}

	printAppRows(apps, total.TotalSeconds)

	fmt.Println()
	bold.Printf("Total: %s over %d sessions\n", formatSeconds(total.TotalSeconds), total.SessionCount)

	first, err := usage.FirstSessionStart(ctx, date, f)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read first activity: %w", err)
	default:
		if t, perr := time.Parse(time.RFC3339, first); perr == nil {
			fmt.Printf("First activity: %s\n", t.Format("15:04"))
		}
	}

	if reportHourly {
		hours, err := usage.HourlyUsage(ctx, date, f)
		if err != nil {
			return fmt.Errorf("failed to read hourly usage: %w", err)
		}
		fmt.Println()
		printHourlyHistogram(hours)
	}

	return nil
}

func printRangeReport(ctx context.Context, store storage.Store, from, to string, f storage.Filter) error {
	usage := store.Usage()

	total, err := usage.RangeTotal(ctx, from, to, f)
	if err != nil {
		return fmt.Errorf("failed to read range total: %w", err)
	}
	apps, err := usage.RangeUsage(ctx, from, to, f)
	if err != nil {
		return fmt.Errorf("failed to read range usage: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Usage from %s to %s\n\n", from, to)

	if total.TotalSeconds == 0 {
		fmt.Println("No usage recorded.")
		return nil
	}

	printAppRows(apps, total.TotalSeconds)

	fmt.Println()
	bold.Printf("Total: %s over %d sessions\n", formatSeconds(total.TotalSeconds), total.SessionCount)

	if reportTrend {
		days, err := usage.DailyTotalsInRange(ctx, from, to, f)
		if err != nil {
			return fmt.Errorf("failed to read daily totals: %w", err)
		}
		fmt.Println()
		printTrend(days)
	}

	return nil
}

func printAppRows(apps []storage.AppUsage, totalSeconds int64) {
	name := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	for _, a := range apps {
		label := a.DisplayName
		if label == "" {
			label = a.ProcessName
		}
		pct := float64(a.TotalSeconds) * 100 / float64(totalSeconds)
		name.Printf("  %-32s", truncate(label, 32))
		fmt.Printf(" %10s  %5.1f%%", formatSeconds(a.TotalSeconds), pct)
		if a.Category != "" {
			dim.Printf("  [%s]", a.Category)
		}
		fmt.Println()
	}
}

func printHourlyHistogram(hours []storage.HourlyUsage) {
	buckets := make([]int64, 24)
	var max int64
	for _, h := range hours {
		if h.Hour >= 0 && h.Hour < 24 {
			buckets[h.Hour] = h.TotalSeconds
			if h.TotalSeconds > max {
				max = h.TotalSeconds
			}
		}
	}
	if max == 0 {
		return
	}

	bar := color.New(color.FgGreen)
	for hour, secs := range buckets {
		if secs == 0 {
			continue
		}
		width := int(secs * 40 / max)
		if width == 0 {
			width = 1
		}
		fmt.Printf("  %02d:00 ", hour)
		bar.Print(strings.Repeat("█", width))
		fmt.Printf(" %s\n", formatSeconds(secs))
	}
}

func printTrend(days []storage.DateTotal) {
	var max int64
	for _, d := range days {
		if d.TotalSeconds > max {
			max = d.TotalSeconds
		}
	}
	if max == 0 {
		return
	}

	bar := color.New(color.FgGreen)
	for _, d := range days {
		width := int(d.TotalSeconds * 40 / max)
		if width == 0 && d.TotalSeconds > 0 {
			width = 1
		}
		fmt.Printf("  %s ", d.Date)
		bar.Print(strings.Repeat("█", width))
		fmt.Printf(" %s\n", formatSeconds(d.TotalSeconds))
	}
}

func formatSeconds(secs int64) string {
	d := time.Duration(secs) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func validateDate(date string) error {
	if _, err := time.Parse(storage.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cleanupOlderThanDays int
	cleanupAll           bool
	cleanupYes           bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete recorded usage history",
	Long:  `Delete usage sessions and daily summaries older than a cutoff, pruning apps left without history. Settings are always preserved.`,
	Example: `  monity cleanup --older-than-days 90
  monity cleanup --all --yes`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupOlderThanDays, "older-than-days", 0, "Delete data older than this many days")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Delete all tracking data")
	cleanupCmd.Flags().BoolVar(&cleanupYes, "yes", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupAll == (cleanupOlderThanDays > 0) {
		return fmt.Errorf("specify exactly one of --all or --older-than-days")
	}

	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	if cleanupAll {
		if !cleanupYes {
			if !confirm("Delete ALL recorded usage data?") {
				fmt.Println("Aborted.")
				return nil
			}
		}
		if err := store.Usage().DeleteAllData(ctx); err != nil {
			return fmt.Errorf("failed to delete data: %w", err)
		}
		color.New(color.Bold).Println("All tracking data deleted.")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -cleanupOlderThanDays).Format(storage.DateFormat)
	result, err := store.Usage().DeleteDataOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete data: %w", err)
	}

	fmt.Printf("Deleted data older than %s: %d sessions, %d summaries, %d apps\n",
		cutoff, result.Sessions, result.Summaries, result.Apps)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	_, _ = fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage tracked applications",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked applications",
	RunE:  runAppsList,
}

var appsCategoryCmd = &cobra.Command{
	Use:   "set-category APP_ID CATEGORY",
	Short: "Assign a category to an app",
	Long:  `Assign a category to an app. Use an empty string to clear it.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runAppsCategory,
}

var appsIgnoreCmd = &cobra.Command{
	Use:   "ignore APP_ID",
	Short: "Hide an app from reports",
	Args:  cobra.ExactArgs(1),
	RunE:  makeIgnoreRun(true),
}

var appsUnignoreCmd = &cobra.Command{
	Use:   "unignore APP_ID",
	Short: "Show an app in reports again",
	Args:  cobra.ExactArgs(1),
	RunE:  makeIgnoreRun(false),
}

func init() {
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsCategoryCmd)
	appsCmd.AddCommand(appsIgnoreCmd)
	appsCmd.AddCommand(appsUnignoreCmd)
	rootCmd.AddCommand(appsCmd)
}

func runAppsList(cmd *cobra.Command, args []string) error {
	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	apps, err := store.Apps().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}

	if len(apps) == 0 {
		fmt.Println("No applications tracked yet.")
		return nil
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	bold.Printf("%6s  %-32s %-16s %s\n", "ID", "NAME", "CATEGORY", "PROCESS")
	for _, a := range apps {
		fmt.Printf("%6d  %-32s %-16s %s", a.ID, truncate(a.EffectiveName(), 32), a.Category, a.ProcessName)
		if a.Ignored {
			dim.Print("  (ignored)")
		}
		fmt.Println()
	}
	return nil
}

func runAppsCategory(cmd *cobra.Command, args []string) error {
	id, err := parseAppID(args[0])
	if err != nil {
		return err
	}

	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Apps().SetCategory(cmd.Context(), id, args[1]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no app with id %d", id)
		}
		return fmt.Errorf("failed to set category: %w", err)
	}
	fmt.Printf("App %d category set to %q\n", id, args[1])
	return nil
}

func makeIgnoreRun(ignored bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseAppID(args[0])
		if err != nil {
			return err
		}

		store, err := openReportStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Apps().SetIgnored(cmd.Context(), id, ignored); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no app with id %d", id)
			}
			return fmt.Errorf("failed to update app: %w", err)
		}
		if ignored {
			fmt.Printf("App %d is now hidden from reports\n", id)
		} else {
			fmt.Printf("App %d is visible in reports again\n", id)
		}
		return nil
	}
}

func parseAppID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid app id %q", s)
	}
	return id, nil
}

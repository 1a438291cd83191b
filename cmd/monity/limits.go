package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/rzayevsahil/Monity/internal/limits"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/spf13/cobra"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage daily usage limits",
	Long:  `Manage the per-process daily usage limits checked by the tracking daemon.`,
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured limits",
	RunE:  runLimitsList,
}

var limitsSetCmd = &cobra.Command{
	Use:   "set PROCESS SECONDS",
	Short: "Set a daily limit for a process",
	Example: `  monity limits set chrome 7200
  monity limits set steam 3600`,
	Args: cobra.ExactArgs(2),
	RunE: runLimitsSet,
}

var limitsClearCmd = &cobra.Command{
	Use:   "clear PROCESS",
	Short: "Remove the daily limit for a process",
	Args:  cobra.ExactArgs(1),
	RunE:  runLimitsClear,
}

func init() {
	limitsCmd.AddCommand(limitsListCmd)
	limitsCmd.AddCommand(limitsSetCmd)
	limitsCmd.AddCommand(limitsClearCmd)
	rootCmd.AddCommand(limitsCmd)
}

func runLimitsList(cmd *cobra.Command, args []string) error {
	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	current, err := readLimits(cmd.Context(), store)
	if err != nil {
		return err
	}

	if len(current) == 0 {
		fmt.Println("No daily limits configured.")
		return nil
	}

	processes := make([]string, 0, len(current))
	for p := range current {
		processes = append(processes, p)
	}
	sort.Strings(processes)

	bold := color.New(color.Bold)
	bold.Printf("%-32s %s\n", "PROCESS", "DAILY LIMIT")
	for _, p := range processes {
		fmt.Printf("%-32s %s\n", p, formatSeconds(current[p]))
	}
	return nil
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	secs, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || secs <= 0 {
		return fmt.Errorf("invalid limit %q, expected positive seconds", args[1])
	}

	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return updateLimits(cmd.Context(), store, func(current map[string]int64) {
		current[args[0]] = secs
	})
}

func runLimitsClear(cmd *cobra.Command, args []string) error {
	store, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return updateLimits(cmd.Context(), store, func(current map[string]int64) {
		delete(current, args[0])
	})
}

func readLimits(ctx context.Context, store storage.Store) (map[string]int64, error) {
	raw, err := store.Settings().Get(ctx, limits.SettingDailyLimits)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read limits: %w", err)
	}

	current := map[string]int64{}
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return nil, fmt.Errorf("stored limits are corrupt: %w", err)
	}
	return current, nil
}

func updateLimits(ctx context.Context, store storage.Store, mutate func(map[string]int64)) error {
	current, err := readLimits(ctx, store)
	if err != nil {
		return err
	}

	mutate(current)

	raw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode limits: %w", err)
	}
	if err := store.Settings().Set(ctx, limits.SettingDailyLimits, string(raw)); err != nil {
		return fmt.Errorf("failed to store limits: %w", err)
	}

	fmt.Printf("Daily limits updated (%d configured)\n", len(current))
	return nil
}

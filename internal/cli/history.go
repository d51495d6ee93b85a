// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/repochat/internal/config"
	"github.com/jeranaias/repochat/internal/storage"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or prune the saved conversation",
		RunE:  func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.AddCommand(newHistoryCountCmd(opts))
	cmd.AddCommand(newHistoryShowCmd(opts))
	cmd.AddCommand(newHistoryClearCmd(opts))
	cmd.AddCommand(newHistoryPruneCmd(opts))
	return cmd
}

// openHistory opens the configured message store. Unlike chat, a store
// that cannot be opened is an error here.
func openHistory(opts *globalOptions) (*config.Config, storage.Store, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(storage.Options{Backend: cfg.Storage.Backend, Path: path})
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// withHistory runs fn against the store and closes it.
func withHistory(opts *globalOptions, fn func(*config.Config, storage.Store) error) error {
	cfg, store, err := openHistory(opts)
	if err != nil {
		return err
	}
	return errors.Join(fn(cfg, store), store.Close())
}

func newHistoryCountCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of saved messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(opts, func(_ *config.Config, store storage.Store) error {
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d message(s)\n", n)
				return nil
			})
		},
	}
}

func newHistoryShowCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the most recent saved messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(opts, func(cfg *config.Config, store storage.Store) error {
				msgs, err := store.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(msgs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved messages.")
					return nil
				}
				r := newRenderer(cfg.Conversation.RenderMarkdown, GetTerminalWidth())
				r.transcript(cmd.OutOrStdout(), msgs, limit)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages to show")
	return cmd
}

func newHistoryClearCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd, "Delete the saved conversation?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			return withHistory(opts, func(_ *config.Config, store storage.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s history cleared\n", RenderStatus("ok"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newHistoryPruneCmd(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete messages older than the retention period",
		Long: `Delete messages older than the retention period.

The period defaults to storage.retention_days from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(opts, func(cfg *config.Config, store storage.Store) error {
				n := cfg.Storage.RetentionDays
				if cmd.Flags().Changed("days") {
					n = days
				}
				if n <= 0 {
					return fmt.Errorf("retention is disabled; pass --days N")
				}
				deleted, err := prune(cmd.Context(), store, time.Duration(n)*24*time.Hour, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %d message(s) older than %d day(s)\n", RenderStatus("ok"), deleted, n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention period in days")
	return cmd
}

func prune(ctx context.Context, store storage.Store, retention time.Duration, now time.Time) (int, error) {
	return store.DeleteOlderThan(ctx, now.Add(-retention))
}

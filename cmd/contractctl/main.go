// Package main は契約書抽出ジョブの運用 CLI です。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/contract-forge/internal/app"
	"github.com/yourusername/contract-forge/internal/config"
	"github.com/yourusername/contract-forge/internal/jobs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "contractctl",
		Short:        "Operate contract extraction jobs",
		SilenceUsage: true,
	}
	root.AddCommand(newWorkerCmd(), newStatusCmd(), newStaleCmd())
	return root
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run extraction workers consuming the asynq queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.DispatchMode != config.DispatchQueue {
				return fmt.Errorf("worker requires DISPATCH_MODE=%s", config.DispatchQueue)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := app.New(ctx, cfg, logger, app.Options{Workers: true})
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			g, gctx := errgroup.WithContext(ctx)
			rt.Start(gctx, g)
			logger.Info("contract worker running", zap.Int("concurrency", cfg.WorkerConcurrency))
			return g.Wait()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status contract-id",
		Short: "Print the status and progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			view, err := store.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), view)
		},
	}
}

func newStaleCmd() *cobra.Command {
	var after time.Duration
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List jobs whose progress has not moved recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if after <= 0 {
				after = cfg.StaleAfter
			}

			store, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			records, err := jobs.NewWatcher(store, after, 0, logger).Scan(cmd.Context())
			if err != nil {
				return err
			}
			return printStale(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().DurationVar(&after, "after", 0, "staleness window (defaults to STALE_AFTER)")
	return cmd
}

func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel, cfg.GinMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func printStatus(w io.Writer, view *jobs.StatusView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func printStale(w io.Writer, records []*jobs.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no stale contracts")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tUPDATED\tFILENAME")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Status, r.Progress, r.UpdatedAt.Format(time.RFC3339), r.Filename)
	}
	return tw.Flush()
}

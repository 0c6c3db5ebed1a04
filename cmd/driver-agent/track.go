package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mobile-home-delivery/internal/gateway/api"
	"mobile-home-delivery/internal/tracking"
)

const defaultSpool = "driver-agent-spool.db"

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run a tracking session over a JSON-lines fix source",
		Long: "Reads newline-delimited JSON fixes from --source (a file, or - for stdin), " +
			"filters them, sends significant points and queues the rest in the local spool " +
			"for batch sync. Stops when the source ends or on interrupt, after a final flush.",
		RunE: runTrack,
	}
	f := cmd.Flags()
	f.Int64("delivery", 0, "delivery id")
	f.String("source", "-", "fix source: file path or - for stdin")
	f.String("spool", defaultSpool, "SQLite spool path")
	f.Duration("sync-interval", 5*time.Minute, "batch sync interval")
	f.Duration("max-backoff", 30*time.Minute, "batch sync backoff cap")
	f.Bool("idle", false, "sample at the idle rate")
	return cmd
}

func runTrack(cmd *cobra.Command, _ []string) error {
	v, err := loadViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	id, err := deliveryID(v)
	if err != nil {
		return err
	}

	in, size, err := openSource(v.GetString("source"), cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	var r io.Reader = in
	if size > 0 {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("replaying fixes"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		r = io.TeeReader(in, bar)
	}

	spool, err := tracking.OpenSQLiteSpool(v.GetString("spool"))
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	opt := tracking.NewOptimizer(tracking.DefaultOptimizerConfig())
	opt.SetActive(!v.GetBool("idle"))

	session := tracking.NewSession(tracking.SessionConfig{
		DeliveryID:   id,
		DriverID:     cfg.DriverID,
		SyncInterval: v.GetDuration("sync-interval"),
		MaxBackoff:   v.GetDuration("max-backoff"),
	},
		tracking.NewJSONLinesSource(r),
		opt,
		tracking.NewQueue(spool),
		api.NewClient(cfg.Server, cfg.DriverID, cfg.Timeout),
		logger,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		_ = spool.Close()
		return err
	}
	select {
	case <-session.Done():
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	cleanupErr := session.Cleanup(stopCtx)

	st := session.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "received=%d accepted=%d sent=%d synced=%d queued=%d dropped=%d\n",
		st.Received, st.Accepted, st.Sent, st.Synced, st.Queued, st.Dropped)
	if cleanupErr != nil {
		if st.Queued > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d points remain spooled; run flush when online\n", st.Queued)
			return nil
		}
		return cleanupErr
	}
	return nil
}

// openSource returns the fix reader and its size when known (0 for stdin).
func openSource(path string, stdin io.Reader) (io.ReadCloser, int64, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat source: %w", err)
	}
	return f, info.Size(), nil
}

func newFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Send spooled points to the server",
		Long:  "Sends every point left in the local spool as one batch per delivery. Without --delivery all spooled deliveries are flushed.",
		RunE:  runFlush,
	}
	f := cmd.Flags()
	f.Int64("delivery", 0, "delivery id (0 flushes every spooled delivery)")
	f.String("spool", defaultSpool, "SQLite spool path")
	return cmd
}

func runFlush(cmd *cobra.Command, _ []string) error {
	v, err := loadViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	spool, err := tracking.OpenSQLiteSpool(v.GetString("spool"))
	if err != nil {
		return err
	}
	defer spool.Close()

	ctx := cmd.Context()
	ids := []int64{v.GetInt64("delivery")}
	if ids[0] <= 0 {
		if ids, err = spool.Deliveries(ctx); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "spool is empty")
		return nil
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	client := api.NewClient(cfg.Server, cfg.DriverID, cfg.Timeout)

	var errs []error
	for _, id := range ids {
		queue := tracking.NewQueue(spool)
		n, err := queue.Restore(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("delivery %d: %w", id, err))
			continue
		}
		if n == 0 {
			continue
		}
		session := tracking.NewSession(tracking.SessionConfig{DeliveryID: id, DriverID: cfg.DriverID},
			nil, nil, queue, client, logger)
		if err := session.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("delivery %d: %w", id, err))
			continue
		}
		st := session.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "delivery %d: synced %d points\n", id, st.Synced)
		if st.Dropped > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "delivery %d: dropped %d points the server refused\n", id, st.Dropped)
		}
	}
	return errors.Join(errs...)
}

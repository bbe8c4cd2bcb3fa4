package demo

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nathanbeddoewebdev/sirius/internal/backend/demo"
	"nathanbeddoewebdev/sirius/internal/config"
	"nathanbeddoewebdev/sirius/internal/logging"

	"github.com/spf13/cobra"
)

const defaultAddr = ":8082"

// serveOptions are the dataset knobs exposed as flags.
type serveOptions struct {
	seed        string
	processes   int
	history     time.Duration
	logInterval time.Duration
}

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve synthetic data over HTTP",
		Long: `Serve synthetic data over the query service protocol until interrupted.

The same seed always produces the same processes and values. The first
process started --history ago; data is generated up to the current time.

Examples:
  sirius demo serve
  sirius demo serve --addr 127.0.0.1:9000 --processes 12 --history 72h
  sirius demo serve --token s3cret
  sirius config set backend-url http://localhost:8082`,
		Args:         cobra.NoArgs,
		RunE:         runServe,
		SilenceUsage: true,
	}

	cmd.Flags().String("addr", defaultAddr, "Listen address")
	cmd.Flags().String("seed", "sirius", "Seed for the generated data")
	cmd.Flags().Int("processes", 5, "Number of processes to serve")
	cmd.Flags().Duration("history", 24*time.Hour, "How long ago the first process started")
	cmd.Flags().Duration("log-interval", 250*time.Millisecond, "Spacing between log entries")
	cmd.Flags().String("token", "", "Require this bearer token on query endpoints")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	opts := serveOptions{}
	opts.seed, _ = cmd.Flags().GetString("seed")
	opts.processes, _ = cmd.Flags().GetInt("processes")
	opts.history, _ = cmd.Flags().GetDuration("history")
	opts.logInterval, _ = cmd.Flags().GetDuration("log-interval")
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(logging.Options{Level: settings.LogLevel})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now().Add(-opts.history)
	d := opts.dataset(start)
	logger.Info().
		Str("seed", opts.seed).
		Int("processes", opts.processes).
		Time("first_start", start).
		Msg("generated demo dataset")
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d demo processes on %s (Ctrl+C to stop)\n", opts.processes, addr)

	serverOpts := []demo.ServerOption{demo.WithServerLogger(logger)}
	if token, _ := cmd.Flags().GetString("token"); token != "" {
		serverOpts = append(serverOpts, demo.WithServerToken(token))
	}
	return demo.NewServer(d, serverOpts...).ListenAndServe(ctx, addr)
}

func (o serveOptions) validate() error {
	switch {
	case o.seed == "":
		return fmt.Errorf("--seed cannot be empty")
	case o.processes < 1:
		return fmt.Errorf("--processes must be at least 1, got %d", o.processes)
	case o.history <= 0:
		return fmt.Errorf("--history must be positive, got %s", o.history)
	case o.logInterval < time.Millisecond:
		return fmt.Errorf("--log-interval must be at least 1ms, got %s", o.logInterval)
	}
	return nil
}

func (o serveOptions) dataset(start time.Time) *demo.Dataset {
	return demo.NewDataset(o.seed, start,
		demo.WithProcessCount(o.processes),
		demo.WithLogInterval(o.logInterval),
	)
}

package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"nathanbeddoewebdev/sirius/cmd/commands/process"
	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/logstore"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/scheduler"
	"nathanbeddoewebdev/sirius/internal/services"
	"nathanbeddoewebdev/sirius/internal/timewindow"
	"nathanbeddoewebdev/sirius/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const followInterval = time.Second

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log [process-id]",
		Short: "Show the log of a process",
		Long: `Show the log entries of a process.

In a terminal this opens a scrollable list that keeps the most recent entries
in memory: / filters on target and message, f follows new entries. Otherwise
the retained entries are printed one per line.

Examples:
  sirius log
  sirius log 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e --limit 200
  sirius log 3f2a9c1e-5b7d-4e0a-9c1e-5b7d4e0a9c1e --follow --grep "slow operation" | tee slow.log`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runLog,
		SilenceUsage: true,
	}

	cmd.Flags().BoolP("follow", "f", false, "Keep polling for new entries")
	cmd.Flags().IntP("limit", "n", 0, "Entries kept in memory (default: log-cap)")
	cmd.Flags().String("grep", "", "Fuzzy filter on target and message (plain output only)")

	return cmd
}

func runLog(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	grep, _ := cmd.Flags().GetString("grep")
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := services.Open(ctx, services.Options{Interactive: interactive})
	if err != nil {
		return err
	}
	defer s.Close()

	proc, err := process.Resolve(ctx, s.Backend, args)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = s.Settings.LogCap
	}

	if interactive {
		return tui.RunLogView(tui.LogViewOptions{
			Backend:    s.Backend,
			BackendURL: s.Settings.BackendURL,
			ProcessID:  proc.ProcessID,
			Cap:        limit,
			Follow:     follow,
			Span:       s.Settings.DefaultWindow,
			Scheduler:  s.SchedulerConfig(),
			Telemetry:  s.Metrics,
			Prefs:      s.Prefs,
			Logger:     s.Logger.With().Str("view", "log").Logger(),
		})
	}

	store := logstore.New(logstore.WithCap(limit), logstore.WithLogger(s.Logger))
	sched := scheduler.New(s.Backend, samplestore.New(),
		scheduler.WithConfig(s.SchedulerConfig()),
		scheduler.WithLogger(s.Logger),
		scheduler.WithMetrics(s.Metrics),
		scheduler.WithLogs(proc.ProcessID, store),
	)
	defer sched.Close()

	p := &printer{out: cmd.OutOrStdout(), store: store, grep: grep}
	window := func() timewindow.Window {
		now := time.Now()
		return timewindow.Window{Start: now.Add(-s.Settings.DefaultWindow), End: now, Resolution: time.Second}
	}

	if err := drain(ctx, sched, window()); err != nil {
		return err
	}
	p.flush()
	if n := store.Evicted(); n > 0 {
		s.Logger.Debug().Int("evicted", n).Int("kept", store.Len()).Msg("older entries dropped")
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		sched.FollowLogs()
		if err := drain(ctx, sched, window()); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		p.flush()
	}
}

// drain requests pages until the backend reports the end of the log.
func drain(ctx context.Context, sched *scheduler.Scheduler, w timewindow.Window) error {
	for {
		err := sched.RequestLogs(w).Wait(ctx)
		switch {
		case errors.Is(err, domain.ErrCursorExhausted):
			return nil
		case err != nil:
			return fmt.Errorf("failed to fetch log entries: %w", err)
		}
	}
}

// printer writes retained entries it has not printed yet.
type printer struct {
	out   io.Writer
	store *logstore.Store
	grep  string
	last  domain.Cursor
	any   bool
}

func (p *printer) flush() {
	var entries []domain.LogEntry
	if p.grep != "" {
		entries = p.store.Filter(p.grep)
	} else {
		entries = p.store.Entries()
	}
	for _, e := range entries {
		if p.any && e.Cursor <= p.last {
			continue
		}
		fmt.Fprintln(p.out, FormatEntry(e))
	}
	if all := p.store.Entries(); len(all) > 0 {
		p.last, p.any = all[len(all)-1].Cursor, true
	}
}

// FormatEntry renders one entry as a single plain line.
func FormatEntry(e domain.LogEntry) string {
	return fmt.Sprintf("%s %-5s %s: %s", e.Time.UTC().Format("2006-01-02T15:04:05.000Z"), e.Level, e.Target, e.Message)
}

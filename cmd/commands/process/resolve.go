package process

import (
	"context"
	"fmt"
	"os"
	"slices"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/tui"
	"nathanbeddoewebdev/sirius/internal/util"

	"golang.org/x/term"
)

// Resolve returns the process named by the first argument, or lets the user
// pick one when no argument was given and stdout is a terminal.
func Resolve(ctx context.Context, b domain.Backend, args []string) (domain.ProcessSummary, error) {
	if len(args) == 0 {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return domain.ProcessSummary{}, fmt.Errorf("a process id is required when not running in a terminal")
		}
		return tui.PickProcess(b)
	}

	id, err := util.ValidateProcessID(args[0])
	if err != nil {
		return domain.ProcessSummary{}, err
	}
	procs, err := b.ListProcesses(ctx)
	if err != nil {
		return domain.ProcessSummary{}, fmt.Errorf("failed to fetch processes: %w", err)
	}
	i := slices.IndexFunc(procs, func(p domain.ProcessSummary) bool { return p.ProcessID == id })
	if i < 0 {
		return domain.ProcessSummary{}, fmt.Errorf("process %s not found", id)
	}
	return procs[i], nil
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"nathanbeddoewebdev/sirius/internal/domain"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/dustin/go-humanize"
)

// ErrAborted is returned when a user cancels an interactive picker.
var ErrAborted = errors.New("aborted by user")

// PickProcess lists the most recent processes and asks the user to choose
// one.
func PickProcess(b domain.Backend) (domain.ProcessSummary, error) {
	accessible := os.Getenv("ACCESSIBLE") != ""

	var procs []domain.ProcessSummary
	err := runSpinner("Fetching processes...", accessible, func(ctx context.Context) error {
		var err error
		procs, err = b.ListProcesses(ctx)
		return err
	})
	if err != nil {
		return domain.ProcessSummary{}, err
	}
	if len(procs) == 0 {
		return domain.ProcessSummary{}, fmt.Errorf("no processes available")
	}

	options := buildProcessOptions(procs)
	selected := procs[0].ProcessID
	field := huh.NewSelect[string]().
		Title("Process").
		Options(options...).
		Value(&selected)
	if err := runForm(accessible, huh.NewGroup(field)); err != nil {
		return domain.ProcessSummary{}, err
	}

	i := slices.IndexFunc(procs, func(p domain.ProcessSummary) bool { return p.ProcessID == selected })
	return procs[i], nil
}

// PickMetrics asks which measures of processID to chart. preselected names
// start checked; when none are given the first two are.
func PickMetrics(catalog domain.MetricCatalog, processID string, preselected []string) ([]domain.MetricInfo, error) {
	accessible := os.Getenv("ACCESSIBLE") != ""

	var metrics []domain.MetricInfo
	err := runSpinner("Fetching metrics...", accessible, func(ctx context.Context) error {
		var err error
		metrics, err = catalog.ListMetrics(ctx, processID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("process %s reports no metrics", processID)
	}

	selected := preselected
	if len(selected) == 0 {
		for _, m := range metrics[:min(2, len(metrics))] {
			selected = append(selected, m.Name)
		}
	}
	field := huh.NewMultiSelect[string]().
		Title("Metrics").
		Options(buildMetricOptions(metrics, selected)...).
		Value(&selected).
		Validate(func(v []string) error {
			if len(v) == 0 {
				return errors.New("select at least one metric")
			}
			return nil
		})
	if err := runForm(accessible, huh.NewGroup(field)); err != nil {
		return nil, err
	}
	return SelectMetrics(metrics, selected), nil
}

// SelectMetrics returns the entries of metrics named in names, in catalog
// order.
func SelectMetrics(metrics []domain.MetricInfo, names []string) []domain.MetricInfo {
	var out []domain.MetricInfo
	for _, m := range metrics {
		if slices.Contains(names, m.Name) {
			out = append(out, m)
		}
	}
	return out
}

// runSpinner runs action behind a spinner on stderr, translating an abort
// into ErrAborted.
func runSpinner(title string, accessible bool, action func(context.Context) error) error {
	err := spinner.New().
		Title(title).
		Accessible(accessible).
		Output(os.Stderr).
		ActionWithErr(action).
		Run()
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
		return ErrAborted
	}
	return err
}

// runForm creates and runs a huh.Form, translating ErrUserAborted to ErrAborted.
func runForm(accessible bool, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

func buildProcessOptions(procs []domain.ProcessSummary) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(procs))
	for _, p := range procs {
		options = append(options, huh.NewOption(processLabel(p), p.ProcessID))
	}
	return options
}

func processLabel(p domain.ProcessSummary) string {
	label := fmt.Sprintf("%s  %s@%s", p.Exe, p.Username, p.Computer)
	if !p.StartTime.IsZero() {
		label += "  started " + humanize.Time(p.StartTime)
	}
	return label + "  " + shortID(p.ProcessID)
}

func buildMetricOptions(metrics []domain.MetricInfo, selected []string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(metrics))
	for _, m := range metrics {
		label := m.Name
		if m.Unit != "" {
			label += " (" + m.Unit + ")"
		}
		options = append(options, huh.NewOption(label, m.Name).Selected(slices.Contains(selected, m.Name)))
	}
	return options
}

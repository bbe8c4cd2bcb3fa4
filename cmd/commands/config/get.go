package config

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/sirius/internal/config"
	"nathanbeddoewebdev/sirius/internal/tui"
	"nathanbeddoewebdev/sirius/internal/util"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Long: "Get a persistent configuration value.\n\n" +
			"If no key is provided and running in a terminal, opens an interactive\n" +
			"config viewer where you can browse and edit all settings.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  sirius config get                # interactive viewer\n" +
			"  sirius config get backend-url    # print a single value",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	// No key: open interactive config viewer.
	if len(args) == 0 {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if err := tui.RunConfigView(); err != nil {
				return fmt.Errorf("config view failed: %w", err)
			}
			return nil
		}

		// Non-interactive: list all values.
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, spec := range config.Keys {
			value, src := spec.Effective(cfg)
			if value == "" {
				value = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, value, sourceLabel(spec, src))
		}
		return w.Flush()
	}

	key := util.NormalizeKey(args[0])

	spec := config.Lookup(key)
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, src := spec.Effective(cfg)
	switch src {
	case config.SourceEnv:
		fmt.Fprintf(cmd.OutOrStdout(), "%s (from %s)\n", value, spec.EnvVar())
	case config.SourceFile:
		fmt.Fprintln(cmd.OutOrStdout(), value)
	case config.SourceDefault:
		fmt.Fprintf(cmd.OutOrStdout(), "not set (default %s)\n", value)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
	}
	return nil
}

func sourceLabel(spec config.KeySpec, src config.Source) string {
	if src == config.SourceEnv {
		return spec.EnvVar()
	}
	return src.String()
}

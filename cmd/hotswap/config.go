// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/invowk/hotswap/internal/config"
	"github.com/invowk/hotswap/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `hotswap config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hotswap configuration",
		Long: `Manage hotswap configuration.

Configuration is read from hotswap.cue in the current directory, or from the
file given with --config. Every key can be overridden with a HOTSWAP_ prefixed
environment variable, for example HOTSWAP_LISTEN=127.0.0.1:4567.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var dir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default hotswap.cue",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.WriteDefault(dir)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s already exists\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", ".", "directory to write hotswap.cue into")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, source, err := app.loadConfig(ctx)
	if err != nil {
		if rendered, renderErr := issue.Get(issue.ConfigLoadFailedID).Render("dark"); renderErr == nil {
			fmt.Fprint(app.stderr, rendered)
		}
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	if source != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), source)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	root := cfg.Root
	if root == "" {
		root = SubtitleStyle.Render("(reported by the loader)")
	}
	for _, kv := range []struct{ key, value string }{
		{"root", root},
		{"project_root", cfg.ProjectRoot},
		{"ignore", joinPatterns(cfg.Ignore)},
		{"include", joinPatterns(cfg.Include)},
		{"boundaries", joinPatterns(cfg.Boundaries)},
		{"restart", joinPatterns(cfg.Restart)},
		{"throw_when_boundaries_are_not_dynamically_imported", fmt.Sprint(cfg.ThrowWhenBoundariesAreNotDynamicallyImported)},
		{"debounce", cfg.Debounce.String()},
		{"listen", cfg.Listen.String()},
		{"clear_screen", fmt.Sprint(cfg.ClearScreen)},
		{"log_level", cfg.LogLevel.String()},
	} {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render(kv.key), valueStyle.Render(kv.value))
	}
	return nil
}

func joinPatterns(patterns []config.GlobPattern) string {
	if len(patterns) == 0 {
		return "[]"
	}
	return "[" + strings.Join(config.Patterns(patterns), ", ") + "]"
}

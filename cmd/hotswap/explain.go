// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/hotswap/internal/issue"

	"github.com/spf13/cobra"
)

func newExplainCommand(app *App) *cobra.Command {
	var style string
	explainCmd := &cobra.Command{
		Use:   "explain [topic]",
		Short: "Explain a problem hotswap reported",
		Long: `Explain a problem hotswap reported.

Errors that have a guide end with "Run 'hotswap explain <topic>'".
Without a topic, every guide is listed.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			slugs := make([]string, 0, len(issue.Values()))
			for _, i := range issue.Values() {
				slugs = append(slugs, i.Slug())
			}
			return slugs, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Topics"))
				for _, i := range issue.Values() {
					fmt.Fprintf(app.stdout, "  %-26s %s\n", CmdStyle.Render(i.Slug()), SubtitleStyle.Render(i.Title()))
				}
				return nil
			}

			found, ok := issue.Lookup(args[0])
			if !ok {
				return issue.NewErrorContext().
					WithOperation("explain").
					WithResource(args[0]).
					WithSuggestion("Run 'hotswap explain' to list the topics").
					Wrap(fmt.Errorf("unknown topic %q", args[0])).
					BuildError()
			}
			rendered, err := found.Render(style)
			if err != nil {
				return fmt.Errorf("render %s: %w", found.Slug(), err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
	explainCmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ascii)")
	return explainCmd
}

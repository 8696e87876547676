// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/invowk/hotswap/internal/importcheck"

	"github.com/spf13/cobra"
)

// importEntry is the JSON shape of one import printed by `hotswap imports --json`.
type importEntry struct {
	Line      int    `json:"line"`
	Specifier string `json:"specifier"`
	Dynamic   bool   `json:"dynamic"`
}

func newImportsCommand(app *App) *cobra.Command {
	var asJSON bool
	importsCmd := &cobra.Command{
		Use:   "imports <file>",
		Short: "List the imports of a file and how they are loaded",
		Long: `List the imports of a JavaScript or TypeScript file.

Each import is reported as static or dynamic. A boundary must be loaded with
a dynamic import() to be swapped in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			imports, err := importcheck.New().Imports(cmd.Context(), path)
			if err != nil {
				return err
			}

			if asJSON {
				entries := make([]importEntry, 0, len(imports))
				for _, imp := range imports {
					entries = append(entries, importEntry{Line: imp.Line, Specifier: imp.Specifier, Dynamic: imp.Dynamic})
				}
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(imports) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("no imports found in "+args[0]))
				return nil
			}
			for _, imp := range imports {
				kind := WarningStyle.Render("static ")
				if imp.Dynamic {
					kind = SuccessStyle.Render("dynamic")
				}
				fmt.Fprintf(app.stdout, "%4d  %s  %s\n", imp.Line, kind, CmdStyle.Render(imp.Specifier))
			}
			return nil
		},
	}
	importsCmd.Flags().BoolVar(&asJSON, "json", false, "print the imports as JSON")
	return importsCmd
}

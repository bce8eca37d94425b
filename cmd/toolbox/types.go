package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SolverEngine/internal/app"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
	"github.com/AaronLay10/SolverEngine/internal/version"
)

type typeListing struct {
	ID       string                    `json:"id"`
	Solvers  []orchestrator.SolverInfo `json:"solvers"`
	Examples int                       `json:"examples"`
}

func newTypesCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List problem types, their solvers and sub-routines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.logger(io.Discard)
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var listing []typeListing
			for _, m := range a.Directory.Managers() {
				listing = append(listing, typeListing{
					ID:       m.Type().ID(),
					Solvers:  m.SolverInfos(),
					Examples: len(m.ExampleProblems()),
				})
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}
			for _, t := range listing {
				fmt.Fprintf(w, "%s %s\n", titleStyle.Render(t.ID), mutedStyle.Render(fmt.Sprintf("(%d examples)", t.Examples)))
				for _, s := range t.Solvers {
					fmt.Fprintf(w, "  %s  %s\n", s.ID, mutedStyle.Render(s.Name))
					for _, sub := range s.SubRoutines {
						req := "optional"
						if sub.Required {
							req = "required"
						}
						fmt.Fprintf(w, "    -> %s (%s) %s\n", sub.TypeID, req, sub.Description)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toolbox %s\n", version.String())
		},
	}
}

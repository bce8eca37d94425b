package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AaronLay10/SolverEngine/internal/app"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

func newSolveCmd(opts *rootOptions) *cobra.Command {
	var typeID, solverID, input, file string
	var asJSON bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one problem and print the solution",
		Long: `Solve one problem. Sub-problems get the preferred solver from the config
file, or the first solver of their type.

Inputs of text types (sat, anomaly-report) are read verbatim; other types
take JSON.

Examples:
  toolbox solve --type sat --file model.cnf
  toolbox solve --type anomaly-report --file model.cnf --json
  toolbox solve --type anomaly --input '{"formula":"p cnf 1 1\n1 0\n","anomaly":"dead"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (input == "") == (file == "") {
				return fmt.Errorf("exactly one of --input and --file is required")
			}
			text := input
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(b)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			m, ok := a.Directory.LookupID(typeID)
			if !ok {
				return fmt.Errorf("%w: %s", orchestrator.ErrUnregisteredType, typeID)
			}
			raw, err := encodeInput(m.Type(), text)
			if err != nil {
				return err
			}

			_, solution, err := a.Solve(ctx, app.SolveRequest{TypeID: typeID, SolverID: solverID, Input: raw})
			if solution == nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(solution); err != nil {
					return err
				}
				return err
			}
			if perr := printSolution(cmd.OutOrStdout(), solution); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "problem type id")
	cmd.Flags().StringVarP(&solverID, "solver", "s", "", "solver id (default: preferred, then first)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "problem input")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the problem input from a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the solution as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the solve after this long")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// encodeInput turns command line text into the JSON a problem expects.
func encodeInput(typ orchestrator.AnyType, text string) (json.RawMessage, error) {
	if typ.InputKind().Kind() == reflect.String {
		return json.Marshal(text)
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: %s input must be JSON", orchestrator.ErrInvalidInput, typ.ID())
	}
	return json.RawMessage(text), nil
}

type solutionView struct {
	Status                string          `json:"status"`
	Data                  json.RawMessage `json:"solutionData"`
	DebugData             string          `json:"debugData"`
	SolverName            string          `json:"solverName"`
	ExecutionMilliseconds int64           `json:"executionMilliseconds"`
}

func printSolution(w io.Writer, solution any) error {
	b, err := json.Marshal(solution)
	if err != nil {
		return err
	}
	var v solutionView
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	style := okStyle
	if v.Status != string(orchestrator.StatusSolved) {
		style = errStyle
	}
	fmt.Fprintf(w, "%s %s\n", style.Render(v.Status),
		mutedStyle.Render(fmt.Sprintf("%s, %dms", v.SolverName, v.ExecutionMilliseconds)))

	if len(v.Data) > 0 {
		var text string
		if err := json.Unmarshal(v.Data, &text); err == nil {
			fmt.Fprintln(w, text)
		} else {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(v.Data, &fields); err != nil {
				fmt.Fprintln(w, string(v.Data))
			} else {
				printFields(w, fields)
			}
		}
	}
	if v.DebugData != "" && v.Status != string(orchestrator.StatusSolved) {
		fmt.Fprintln(w, mutedStyle.Render(v.DebugData))
	}
	return nil
}

func printFields(w io.Writer, fields map[string]json.RawMessage) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(w, titleStyle.Render(k+":"))
		var text string
		if err := json.Unmarshal(fields[k], &text); err == nil {
			fmt.Fprintln(w, text)
		} else {
			fmt.Fprintln(w, string(fields[k]))
		}
	}
}

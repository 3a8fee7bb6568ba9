package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [input-json|-]",
		Short: "Run one tool call and print its result",
		Long: "Run one tool call and print its result as JSON.\n\n" +
			"The input defaults to {}. Pass - to read it from stdin.\n" +
			"The exit status is 1 when the result has ok=false.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}

			registry, cleanup, err := a.newRegistry()
			if err != nil {
				return err
			}
			defer cleanup()

			res := registry.Dispatch(cmd.Context(), args[0], input)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}
			if !res.OK {
				return errToolFailed
			}
			return nil
		},
	}
}

// readInput returns the tool input from args or, for "-", from stdin.
// Syntax is not checked here; the tool reports malformed input itself.
func readInput(args []string, stdin io.Reader) (json.RawMessage, error) {
	if len(args) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if args[0] != "-" {
		return json.RawMessage(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return json.RawMessage(data), nil
}

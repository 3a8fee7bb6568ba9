package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/agentmail-skill/internal/tools"
)

const maxRequestBytes = 1 << 20

var errInvalidRequest = errors.New(`invalid request: expected {"tool": "...", "input": {...}}`)

// request is one line of the serve protocol.
type request struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

type dispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) tools.Result
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-lines tool calls on stdin",
		Long: "Read one request per line from stdin, of the form\n" +
			`{"tool": "get_message", "input": {"message_id": "..."}}` + "\n" +
			"and write one result per line to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, cleanup, err := a.newRegistry()
			if err != nil {
				return err
			}
			defer cleanup()

			a.logger.Info("serving tool calls", "backend", a.cfg.Backend)
			return serveLines(cmd.Context(), registry, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// serveLines answers each non-blank input line with exactly one result
// line until in is exhausted or ctx is done.
func serveLines(ctx context.Context, d dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var res tools.Result
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			res = tools.Failure(errInvalidRequest)
		} else {
			res = d.Dispatch(ctx, req.Tool, req.Input)
		}

		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/invowk/hotswap/internal/graph"
	"github.com/invowk/hotswap/internal/issue"
	"github.com/invowk/hotswap/internal/protocol"
	"github.com/invowk/hotswap/internal/server"
	"github.com/invowk/hotswap/internal/supervisor"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const dumpTimeout = 10 * time.Second

func newDumpCommand(app *App) *cobra.Command {
	var (
		addr   string
		format string
	)
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the dependency graph of a running engine",
		Long: `Print the dependency graph of a running engine.

The engine address is taken from --addr, then from HOTSWAP_ADDR, then from
the listen key of hotswap.cue when it names a fixed port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			render, err := dumpRenderer(format)
			if err != nil {
				return err
			}
			if addr == "" {
				addr, err = resolveEngineAddr(cmd.Context(), app)
				if err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), dumpTimeout)
			defer cancel()
			nodes, err := fetchDump(ctx, addr)
			if err != nil {
				return err
			}
			return render(app, nodes)
		},
	}
	dumpCmd.Flags().StringVar(&addr, "addr", "", "engine websocket URL (ws://host:port/ws)")
	dumpCmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json, dot, mermaid)")
	return dumpCmd
}

func dumpRenderer(format string) (func(*App, []graph.DumpNode) error, error) {
	switch format {
	case "json":
		return func(app *App, nodes []graph.DumpNode) error {
			enc := json.NewEncoder(app.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}, nil
	case "dot":
		return func(app *App, nodes []graph.DumpNode) error {
			_, err := fmt.Fprint(app.stdout, graph.DOT(nodes))
			return err
		}, nil
	case "mermaid":
		return func(app *App, nodes []graph.DumpNode) error {
			_, err := fmt.Fprint(app.stdout, graph.Mermaid(nodes))
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (valid: json, dot, mermaid)", format)
	}
}

// resolveEngineAddr finds the engine when --addr is not given.
func resolveEngineAddr(ctx context.Context, app *App) (string, error) {
	if env := os.Getenv(supervisor.EnvAddr); env != "" {
		return env, nil
	}
	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return "", err
	}
	if _, port, err := net.SplitHostPort(cfg.Listen.String()); err == nil && port != "0" {
		return "ws://" + cfg.Listen.String() + server.WebSocketPath, nil
	}
	return "", issue.NewErrorContext().
		WithOperation("locate the engine").
		WithSuggestion("Pass --addr with the address printed by 'hotswap serve'").
		WithSuggestion("Or set a fixed port with the listen key of hotswap.cue").
		WithGuide(issue.EngineUnreachableID).
		Wrap(fmt.Errorf("listen address %s has no fixed port", cfg.Listen)).
		BuildError()
}

// fetchDump connects to the engine and issues one correlated dump request.
func fetchDump(ctx context.Context, addr string) ([]graph.DumpNode, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to the engine").
			WithResource(addr).
			WithSuggestion("Check that 'hotswap serve' is running").
			WithGuide(issue.EngineUnreachableID).
			Wrap(err).
			BuildError()
	}

	client := protocol.NewClient(protocol.NewWebSocketEndpoint(conn))
	defer func() { _ = client.Close() }()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = client.Run(runCtx) }()
	go func() {
		for range client.Events() {
		}
	}()

	return client.Dump(ctx)
}

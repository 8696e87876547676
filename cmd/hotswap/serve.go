// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/invowk/hotswap/internal/config"
	"github.com/invowk/hotswap/internal/engine"
	"github.com/invowk/hotswap/internal/issue"
	"github.com/invowk/hotswap/internal/protocol"
	"github.com/invowk/hotswap/internal/server"
	"github.com/invowk/hotswap/internal/supervisor"
	"github.com/invowk/hotswap/internal/watch"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	listen  string
	command []string
}

func newServeCommand(app *App) *cobra.Command {
	var opts serveOptions
	serveCmd := &cobra.Command{
		Use:   "serve [flags] [-- command [args...]]",
		Short: "Watch the project and run the host with hot module replacement",
		Long: `Watch the project and run the host with hot module replacement.

The engine listens for the host's loader hook, whose address is exported to
the host as HOTSWAP_ADDR. Changes that can be swapped in place are sent to the
host as invalidations; everything else restarts it.

Without a command, the root file of hotswap.cue is started with node.`,
		Example: `  hotswap serve -- node --import=hotswap/register bin/server.js
  hotswap serve --listen 127.0.0.1:4567 -- npm run dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.command = args
			return runServe(cmd.Context(), app, opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.listen, "listen", "", "engine address (overrides the listen key)")
	return serveCmd
}

func runServe(ctx context.Context, app *App, opts serveOptions) error {
	cfg, source, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = config.ListenAddress(opts.listen)
		if valid, errs := cfg.Listen.IsValid(); !valid {
			return errs[0]
		}
	}
	command, err := hostCommand(cfg, opts.command)
	if err != nil {
		return err
	}

	logger := app.logger(cfg)
	if source != "" {
		logger.Debug("configuration loaded", "file", source)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var eng *engine.Engine
	w, err := watch.New(watch.Config{
		BaseDir:  cfg.ProjectRoot,
		Include:  config.Patterns(cfg.Include),
		Ignore:   config.Patterns(cfg.Ignore),
		Debounce: cfg.Debounce,
		OnEvent: func(ctx context.Context, ev watch.Event) {
			eng.Dispatch(ctx, ev.Path, protocol.Action(ev.Action))
		},
		Logger: logger.WithPrefix("watch"),
	})
	if err != nil {
		return watchError(cfg.ProjectRoot, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	eng, err = engine.New(engineConfig(cfg, w, reg, logger.WithPrefix("engine")))
	if err != nil {
		return err
	}
	if cfg.Root != "" {
		if err := eng.AddRoot(ctx, filepath.ToSlash(cfg.Root)); err != nil {
			return err
		}
	}

	srv, err := server.New(server.Config{
		Addr:     cfg.Listen.String(),
		Engine:   eng,
		Gatherer: reg,
		Logger:   logger.WithPrefix("server"),
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(app.stderr, "%s engine listening on %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(srv.WebSocketURL()))

	sup, err := supervisor.New(supervisor.Config{
		Command:     command,
		Dir:         cfg.ProjectRoot,
		Addr:        srv.WebSocketURL(),
		ClearScreen: cfg.ClearScreen,
		Stdin:       app.stdin,
		Stdout:      app.stdout,
		Stderr:      app.stderr,
		Logger:      logger.WithPrefix("supervisor"),
	})
	if err != nil {
		_ = srv.Stop()
		return err
	}

	hostEnd, unsubscribeHost := subscribe(eng)
	defer unsubscribeHost()
	reportEnd, unsubscribeReport := subscribe(eng)
	defer unsubscribeReport()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return srv.Stop()
		case err := <-srv.Err():
			return err
		}
	})
	g.Go(func() error {
		if err := w.Run(gctx); err != nil {
			return watchError(cfg.ProjectRoot, err)
		}
		return nil
	})
	g.Go(func() error { return sup.Watch(gctx, hostEnd) })
	g.Go(func() error { return reportEvents(gctx, reportEnd, app.stderr, logger) })
	g.Go(func() error {
		<-gctx.Done()
		sup.Stop()
		eng.Close()
		return nil
	})

	if err := sup.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// hostCommand returns the command to supervise, defaulting to node <root>.
func hostCommand(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if cfg.Root != "" {
		return []string{"node", cfg.Root}, nil
	}
	return nil, issue.NewErrorContext().
		WithOperation("start the host").
		WithSuggestion("Pass the command after --, for example: hotswap serve -- node bin/server.js").
		WithSuggestion("Or set root in hotswap.cue").
		WithGuide(issue.HostCommandFailedID).
		Wrap(errors.New("no command to run")).
		BuildError()
}

// engineConfig maps the CLI configuration onto the engine.
func engineConfig(cfg *config.Config, tracker engine.Tracker, reg prometheus.Registerer, logger *log.Logger) engine.Config {
	return engine.Config{
		ProjectRoot: cfg.ProjectRoot,
		Ignore:      config.Patterns(cfg.Ignore),
		Include:     config.Patterns(cfg.Include),
		Boundaries:  config.Patterns(cfg.Boundaries),
		Restart:     config.Patterns(cfg.Restart),
		ThrowWhenBoundariesAreNotDynamicallyImported: cfg.ThrowWhenBoundariesAreNotDynamicallyImported,
		Tracker:    tracker,
		Registerer: reg,
		Logger:     logger,
	}
}

func subscribe(eng *engine.Engine) (protocol.Endpoint, func()) {
	engineEnd, localEnd := protocol.Pipe()
	unsubscribe := eng.Hub().Subscribe(engineEnd)
	return localEnd, func() {
		unsubscribe()
		_ = engineEnd.Close()
	}
}

// reportEvents logs engine decisions. The guidance for a statically imported
// boundary is printed once per run.
func reportEvents(ctx context.Context, ep protocol.Endpoint, stderr io.Writer, logger *log.Logger) error {
	explained := false
	for {
		msg, err := ep.Receive(ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrEndpointClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch m := msg.(type) {
		case protocol.Invalidated:
			logger.Info("hot swapped", "modules", len(m.Paths))
		case protocol.FullReload:
			if m.ShouldBeReloadable && !explained {
				explained = true
				if rendered, err := issue.Get(issue.MisdeclaredBoundaryID).Render("dark"); err == nil {
					fmt.Fprint(stderr, rendered)
				}
			}
		case protocol.FileChanged:
			logger.Debug("file changed", "path", m.Path, "action", m.Action)
		}
	}
}

func watchError(dir string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("watch files").
		WithResource(dir)
	if watch.IsResourceExhausted(err) {
		ctx = ctx.WithSuggestion("Add large generated directories to the ignore key").
			WithGuide(issue.WatchLimitReachedID)
	}
	return ctx.Wrap(err).BuildError()
}

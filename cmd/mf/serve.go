package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"magicformula/internal/httpapi"
	"magicformula/internal/report"
)

type serveCmd struct {
	configFlags
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the backtest and serve the dashboard over HTTP" }
func (*serveCmd) Usage() string {
	return `mf serve [-config <file>] [-addr <host:port>]

  Runs the backtest once and serves the HTML dashboard, JSON API and PNG
  charts until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	c.configFlags.register(f)
	f.StringVar(&c.addr, "addr", "", "listen address (overrides server.addr)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logFileName := fmt.Sprintf("/tmp/mf-serve-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fail(fmt.Errorf("opening log file: %w", err))
	}
	defer logFile.Close()

	cfg, logger, err := c.load(io.MultiWriter(os.Stdout, logFile))
	if err != nil {
		return fail(err)
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	rep, err := report.Build(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	srv := httpapi.NewDashboardServer(rep.View, rep.Images, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", httpServer.Addr, "run", rep.Result.RunID)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fail(fmt.Errorf("HTTP server: %w", err))
		}
	}
	logger.Info("shutting down dashboard")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return subcommands.ExitSuccess
}

// Command a11yaudit audits web pages for accessibility.
//
// Usage:
//
//	a11yaudit -config a11yaudit.yaml             # serve the HTTP API
//	a11yaudit -url https://example.gov.in        # audit one page, print JSON
//	a11yaudit -mcp                               # serve MCP tools over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11yaudit/auditor"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a11yaudit.yaml config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	singleURL := flag.String("url", "", "audit a single URL and print the result")
	force := flag.Bool("force", false, "with -url: bypass cached results")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *addr, *singleURL, *force, *serveMCP); err != nil {
		logger.Error("a11yaudit: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, addr, singleURL string, force, serveMCP bool) error {
	cfg := &auditor.Config{}
	if configPath != "" {
		var err error
		if cfg, err = auditor.LoadConfigFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	a, err := auditor.New(ctx, cfg, auditor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case singleURL != "":
		return runSingle(ctx, a, singleURL, force)
	case serveMCP:
		return runMCP(ctx, a)
	default:
		return runHTTP(ctx, logger, a, cfg.HTTP.Addr)
	}
}

func runSingle(ctx context.Context, a *auditor.Auditor, url string, force bool) error {
	resp := a.Audit(ctx, auditor.AuditRequest{URL: url, ForceRescan: force, UserID: auditor.AnonymousUser})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.Status == auditor.StatusError {
		return resp.Err()
	}
	return nil
}

func runMCP(ctx context.Context, a *auditor.Auditor) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "a11yaudit",
		Version: version,
	}, nil)
	a.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func runHTTP(ctx context.Context, logger *slog.Logger, a *auditor.Auditor, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("a11yaudit: server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("a11yaudit: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/shopview/shopview/internal/cache"
	"github.com/shopview/shopview/internal/config"
	"github.com/shopview/shopview/internal/server"
	"github.com/shopview/shopview/internal/store"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	fixtureDebounce     = 500 * time.Millisecond
	dialTimeout         = 10 * time.Second
	browserPollInterval = 100 * time.Millisecond
	browserPollAttempts = 60
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("shopview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`shopview %s - ecommerce session analytics dashboard

Reads the sessions collection from a MongoDB-compatible store (Azure
Cosmos DB), flattens the nested session fields into a table, and
serves filterable metrics, chart aggregates, and a CSV export over a
local web API.

Usage:
  shopview [flags]          Start the server (default command)
  shopview serve [flags]    Start the server (explicit)
  shopview version          Show version information
  shopview help             Show this help

Server flags:
  -host string     Host to bind to (default "127.0.0.1")
  -port int        Port to listen on (default 8501)
  -secrets string  Path to the TOML secrets file
                   (default ~/.shopview/secrets.toml)
  -fixture string  Load sessions from a JSONL file instead of the
                   database (local development)
  -no-browser      Don't open browser on startup

Environment variables:
  COSMOS_CONNECTION_STRING  Store connection string (overrides the
                            secrets file)
  SHOPVIEW_DATABASE         Database name (default "ecommerce")
  SHOPVIEW_COLLECTION       Collection name (default "sessions")
  SHOPVIEW_CACHE_TTL        Data cache TTL (default 5m)

The secrets file holds the connection string:

  [cosmos_db]
  connection_string = "mongodb://..."
`, version)
}

func runServe(args []string) {
	logger := newLogger()
	cfg := mustLoadConfig(args, logger)

	loader, closeStore := newLoader(cfg)
	defer closeStore()

	snap := cache.New(loader, cfg.CacheTTL)

	stopWatcher := startFixtureWatcher(cfg, logger, snap)
	defer stopWatcher()

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, snap, logger,
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	url := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	fmt.Printf("shopview %s listening at %s\n", version, url)

	if !cfg.NoBrowser {
		go openBrowser(url)
	}

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("SHOPVIEW_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().Timestamp().Logger()
}

func mustLoadConfig(args []string, logger zerolog.Logger) config.Config {
	fs := flag.NewFlagSet("shopview", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: shopview [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		logger.Fatal().Err(err).Msg("parsing flags")
	}

	cfg, err := config.Load(fs)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	return cfg
}

// newLoader picks the session source: the fixture file when -fixture
// is set, otherwise the configured document store. The store client
// dials lazily on first load, so a bad connection string degrades to
// an error panel rather than a startup crash.
func newLoader(cfg config.Config) (cache.Loader, func()) {
	if cfg.FixtureFile != "" {
		return store.NewFile(cfg.FixtureFile), func() {}
	}

	m := store.NewMongo(
		cfg.ConnectionString, cfg.Database, cfg.Collection,
	)
	closeStore := func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), dialTimeout,
		)
		defer cancel()
		_ = m.Close(ctx)
	}
	return m, closeStore
}

func startFixtureWatcher(
	cfg config.Config, logger zerolog.Logger, snap *cache.Snapshot,
) func() {
	if cfg.FixtureFile == "" {
		return func() {}
	}

	watcher, err := store.NewWatcher(
		cfg.FixtureFile, fixtureDebounce, logger, snap.Invalidate,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("fixture watcher unavailable")
		return func() {}
	}
	watcher.Start()
	return watcher.Stop
}

func openBrowser(url string) {
	for range browserPollAttempts {
		time.Sleep(browserPollInterval)
		resp, err := http.Get(url + "/api/v1/version")
		if err == nil {
			resp.Body.Close()
			break
		}
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32",
			"url.dll,FileProtocolHandler", url)
	default:
		return
	}
	_ = cmd.Run()
}

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"pdf-generator/internal/config"
	"pdf-generator/internal/http/server"
	"pdf-generator/internal/infra/chrome"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/infra/postgres"
	"pdf-generator/internal/infra/stats"
	"pdf-generator/internal/render"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if p := configPathFromArgs(os.Args[1:]); p != "" {
		_ = os.Setenv("CONFIG_PATH", p)
	}
	cfg := config.Load()

	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	run(cfg)
}

// configPathFromArgs reads --config. Unknown flags are ignored so the binary
// tolerates flags meant for other tooling.
func configPathFromArgs(args []string) string {
	fs := pflag.NewFlagSet("pdf-generator", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	path := fs.String("config", "", "path to the YAML config file (overrides CONFIG_PATH)")
	if err := fs.Parse(args); err != nil {
		return ""
	}
	return *path
}

// run wires the service and blocks until a shutdown signal is handled.
func run(cfg config.Config) {
	rec := stats.New(cfg.Stats.RedisHost, cfg.Stats.RedisDB)

	engine := chrome.NewEngine(chrome.Options{
		ExecPath:    cfg.PDF.ChromePath,
		NoSandbox:   cfg.PDF.ChromeNoSandbox,
		UserDataDir: cfg.PDF.UserDataDir,
	})
	renderer := render.New(render.Config{
		Timeout:        time.Duration(cfg.PDF.TimeoutSecs) * time.Second,
		AcquireTimeout: time.Duration(cfg.PDF.AcquireTimeoutSecs) * time.Second,
		MaxConcurrent:  cfg.PDF.MaxConcurrent,
	}, engine, rec)

	deps := server.Deps{Config: cfg, Renderer: renderer}
	var journal *postgres.Journal
	if cfg.Journal.Enabled {
		j, err := postgres.NewJournal(cfg.Journal.Postgres)
		if err != nil {
			logging.Error("Conversion journal disabled", "error", err)
		} else {
			journal = j
			deps.Journal = j
		}
	}
	svc := server.NewPDFService(deps)
	deps.Service = svc

	app := server.New(deps)

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed, shutdownHooks{
		// No new browser launches once shutdown starts.
		beforeDrain: renderer.Close,
		// In-flight requests may still write journal rows and counters
		// until the drain completes.
		afterDrain: func() {
			svc.Wait()
			if journal != nil {
				if err := journal.Close(); err != nil {
					logging.Warn("Conversion journal close failed", "error", err)
				}
			}
			if err := rec.Close(); err != nil {
				logging.Warn("Stats recorder close failed", "error", err)
			}
		},
	})
	<-idleConnsClosed
}

// shutdownHooks run around the drain of in-flight requests. Either may be nil.
type shutdownHooks struct {
	beforeDrain func()
	afterDrain  func()
}

// startServer starts the Fiber app and listens for shutdown signals.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}, hooks shutdownHooks) {
	go func() {
		logging.Info("Server listening", "addr", cfg.Server.Host+cfg.Server.Port)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	if hooks.beforeDrain != nil {
		hooks.beforeDrain()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	if hooks.afterDrain != nil {
		hooks.afterDrain()
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/chauveaul/jukebox-terminal/config"
	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/lyrics"
	"github.com/chauveaul/jukebox-terminal/monitor"
	"github.com/chauveaul/jukebox-terminal/shell"
	"github.com/chauveaul/jukebox-terminal/tui"
)

func main() {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		// Provide dependencies
		fx.Provide(
			loadConfig,
			config.NewLogger,
			fx.Annotate(newDaemon, fx.As(new(daemon.Service))),
			newLyrics,
			monitor.New,
			newSession,
		),

		// Lifecycle hooks
		fx.Invoke(registerHooks),
	)

	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting jukebox: %v\n", err)
		os.Exit(1)
	}
	app.Run()
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func newDaemon(cfg *config.Config, logger *zap.Logger) *daemon.Daemon {
	return daemon.New(cfg.APIURL, cfg.WSURL,
		daemon.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		daemon.WithRetryPolicy(daemon.RetryPolicy{
			Attempts:    cfg.WSRetries,
			Backoff:     cfg.WSBackoff,
			ShouldRetry: daemon.AlwaysRetry,
		}),
		daemon.WithLogger(logger),
	)
}

func newLyrics(cfg *config.Config, logger *zap.Logger) *lyrics.Client {
	return lyrics.NewClient(cfg.LyricsURL, logger)
}

// newSession ties the session context to the app: stopping the app cancels
// every remote call and closes the push channel.
func newSession(lc fx.Lifecycle, cfg *config.Config, svc daemon.Service, mon *monitor.Monitor, lyr *lyrics.Client, logger *zap.Logger) *shell.Session {
	ctx, cancel := context.WithCancel(context.Background())
	session := shell.New(ctx, svc, mon,
		shell.WithPollInterval(cfg.PollInterval),
		shell.WithEndpoints(cfg.APIURL, cfg.WSURL),
		shell.WithLyrics(lyr),
		shell.WithLogger(logger),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cancel()
			return session.Close()
		},
	})
	return session
}

// registerHooks runs the terminal for the lifetime of the app and shuts the
// app down when the user quits.
func registerHooks(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, session *shell.Session, mon *monitor.Monitor, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("Configuration loaded", cfg.Fields()...)
			go func() {
				defer close(done)
				code := 0
				if err := tui.Run(ctx, tui.NewModel(session, mon)); err != nil {
					logger.Error("Terminal exited with error", zap.Error(err))
					fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Warn("Shutdown request failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			mon.Shutdown()
			logger.Info("Shutting down")
			_ = logger.Sync()
			return nil
		},
	})
}

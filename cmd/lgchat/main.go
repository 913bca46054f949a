package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/api"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/config"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/store"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyClient
	contextKeyLogger
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getClient(ctx *cli.Context) *api.Client {
	return ctx.Context.Value(contextKeyClient).(*api.Client)
}

func getLogger(ctx *cli.Context) zerolog.Logger {
	return ctx.Context.Value(contextKeyLogger).(zerolog.Logger)
}

func prepareApp(ctx *cli.Context) error {
	path := ctx.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w (run 'lgchat init' to create one)", err)
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is not set in %s", path)
	}

	applyLogLevel(cfg.LogLevel)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	httpClient := &http.Client{Timeout: cfg.Chat.RequestTimeout()}
	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.Token, httpClient, logger)

	newCtx := context.WithValue(ctx.Context, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyClient, client)
	newCtx = context.WithValue(newCtx, contextKeyLogger, logger)
	ctx.Context = newCtx
	return nil
}

// applyLogLevel sets the process-wide log level so a config hot reload
// can change verbosity without rebuilding loggers.
func applyLogLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// watchConfig hot-reloads the config file behind long-running commands.
// apply receives each freshly parsed config; the watcher stops with ctx.
func watchConfig(ctx context.Context, path string, logger zerolog.Logger, apply func(*config.Config)) {
	go func() {
		err := config.Watch(ctx, path, logger, apply)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("Config watcher exited")
		}
	}()
}

func openCache(cfg *config.Config, logger zerolog.Logger) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return store.Open(filepath.Join(cfg.DataDir, "chat-cache.db"), logger)
}

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "Write an example config file",
	Action: func(ctx *cli.Context) error {
		path := ctx.String("config")
		if err := config.CreateFromExample(path); err != nil {
			return err
		}
		fmt.Println("Wrote", path)
		fmt.Println("Fill in server.base_url and server.token before connecting.")
		return nil
	},
}

func main() {
	app := &cli.App{
		Name:    "lgchat",
		Usage:   "Terminal client for LionsGeek chat",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file",
				Value: config.DefaultPath(),
			},
		},
		Commands: []*cli.Command{
			initCommand,
			openCommand,
			sendCommand,
			unreadCommand,
			pruneCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MrEthical07/signpanel"
	"github.com/MrEthical07/signpanel/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// memoryRedis is the --redis-addr value that starts an in-process Redis.
const memoryRedis = "memory"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Base URL of the panel backend.",
			Value:   signpanel.DefaultConfig().Backend.BaseURL,
			EnvVars: []string{"SIGNPANEL_BACKEND_URL"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Backend request timeout.",
			Value:   signpanel.DefaultConfig().Backend.Timeout,
			EnvVars: []string{"SIGNPANEL_BACKEND_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Where cooldowns and the session are kept: file, redis or memory.",
			Value:   string(signpanel.StorageFile),
			EnvVars: []string{"SIGNPANEL_STORE"},
		},
		&cli.StringFlag{
			Name:      "store-file",
			Usage:     "JSON file used by --store file (default ~/.signpanel.json).",
			TakesFile: true,
			EnvVars:   []string{"SIGNPANEL_STORE_FILE"},
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address used by --store redis; \"memory\" starts an in-process server.",
			Value:   "127.0.0.1:6379",
			EnvVars: []string{"SIGNPANEL_REDIS_ADDR", "REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "redis-prefix",
			Usage:   "Namespace for Redis keys.",
			Value:   signpanel.DefaultConfig().Storage.RedisPrefix,
			EnvVars: []string{"SIGNPANEL_REDIS_PREFIX"},
		},
		&cli.DurationFlag{
			Name:    "window",
			Usage:   "Cooldown after an accepted send.",
			Value:   signpanel.DefaultConfig().Cooldown.Window,
			EnvVars: []string{"SIGNPANEL_COOLDOWN_WINDOW"},
		},
		&cli.StringFlag{
			Name:    "label",
			Usage:   "Label of an enabled send control.",
			Value:   signpanel.DefaultConfig().Cooldown.DefaultLabel,
			EnvVars: []string{"SIGNPANEL_LABEL"},
		},
		&cli.StringFlag{
			Name:    "countdown-format",
			Usage:   "Label during a cooldown; %d is the remaining seconds.",
			Value:   signpanel.DefaultConfig().Cooldown.CountdownFormat,
			EnvVars: []string{"SIGNPANEL_COUNTDOWN_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn, error or off.",
			Value:   "warn",
			EnvVars: []string{"SIGNPANEL_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "console or json.",
			Value:   logging.FormatConsole,
			EnvVars: []string{"SIGNPANEL_LOG_FORMAT", "LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "development or production logging preset.",
			Value:   logging.EnvironmentDevelopment,
			EnvVars: []string{"SIGNPANEL_ENV", "ENVIRONMENT"},
		},
	}
}

// panelConfig maps global flags onto a panel configuration.
func panelConfig(c *cli.Context) (signpanel.Config, error) {
	cfg := signpanel.DefaultConfig()

	cfg.Backend.BaseURL = c.String("backend")
	cfg.Backend.Timeout = c.Duration("timeout")
	cfg.Cooldown.Window = c.Duration("window")
	cfg.Cooldown.DefaultLabel = c.String("label")
	cfg.Cooldown.CountdownFormat = c.String("countdown-format")
	cfg.Storage.Kind = signpanel.StorageKind(c.String("store"))
	cfg.Storage.RedisPrefix = c.String("redis-prefix")
	cfg.Notify.DropIfFull = false

	if cfg.Storage.Kind == signpanel.StorageFile {
		path := c.String("store-file")
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return cfg, fmt.Errorf("resolving store file: %w", err)
			}
			path = filepath.Join(home, ".signpanel.json")
		}
		cfg.Storage.FilePath = path
	}

	return cfg, cfg.Validate()
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Environment: c.String("environment"),
		Level:       c.String("log-level"),
		Format:      c.String("log-format"),
	})
}

// openRedis connects to addr, or to a fresh in-process server when addr is "memory".
func openRedis(addr string, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if addr == memoryRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("starting miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		logger.Info("using miniredis", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}

// openPanel builds a panel from the global flags. Toasts are printed to out.
// The returned cleanup closes the panel and anything opened for it.
func openPanel(c *cli.Context, out io.Writer) (*signpanel.Panel, func(), error) {
	cfg, err := panelConfig(c)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(c)
	if err != nil {
		return nil, nil, err
	}

	b := signpanel.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithNotificationSink(signpanel.NewNotificationWriterSink(out))

	closeRedis := func() {}
	if cfg.Storage.Kind == signpanel.StorageRedis {
		client, cleanup, err := openRedis(c.String("redis-addr"), logger)
		if err != nil {
			return nil, nil, err
		}
		closeRedis = cleanup
		b.WithRedis(client)
	}

	p, err := b.Build()
	if err != nil {
		closeRedis()
		return nil, nil, err
	}

	return p, func() {
		p.Close()
		closeRedis()
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/signpanel/internal/backend/stubserver"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func mountServeCommands(app *cli.App) {
	app.Commands = append(app.Commands, serveStubCommand)
}

var serveStubCommand = &cli.Command{
	Name:  "serve-stub",
	Usage: "Run an in-memory backend for local use. Issued codes are printed instead of mailed.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "Listen address.",
			Value:   "127.0.0.1:8080",
			EnvVars: []string{"SIGNPANEL_STUB_ADDR"},
		},
		&cli.StringFlag{
			Name:    "signing-key",
			Usage:   "HMAC key for issued tokens; random when empty.",
			EnvVars: []string{"SIGNPANEL_STUB_SIGNING_KEY"},
		},
		&cli.DurationFlag{
			Name:  "code-ttl",
			Usage: "Lifetime of an issued verification code.",
			Value: stubserver.DefaultCodeTTL,
		},
		&cli.BoolFlag{
			Name:  "evaluate",
			Usage: "Serve expression evaluation on /calculate.",
			Value: true,
		},
	},
	Action: func(c *cli.Context) error {
		logger, err := newLogger(c)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		opts := []stubserver.Option{
			stubserver.WithLogger(logger),
			stubserver.WithCodeTTL(c.Duration("code-ttl")),
			stubserver.WithDelivery(func(channel, email, code string) {
				fmt.Fprintf(c.App.Writer, "code for %s (%s): %s\n", email, channel, code)
			}),
		}
		if key := c.String("signing-key"); key != "" {
			opts = append(opts, stubserver.WithSigningKey([]byte(key)))
		}
		if c.Bool("evaluate") {
			opts = append(opts, stubserver.WithEvaluator(stubserver.Arithmetic))
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("stub backend listening", zap.String("addr", c.String("addr")))
		return serveUntilDone(ctx, c.String("addr"), stubserver.New(opts...))
	},
}

// serveUntilDone serves h on addr until ctx is done, then shuts down gracefully.
func serveUntilDone(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

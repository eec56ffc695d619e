package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/signpanel"
	"github.com/MrEthical07/signpanel/metrics/export/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const exitCooldownActive = 3

var channels = []string{signpanel.ChannelRegister, signpanel.ChannelReset}

func mountCodeCommands(app *cli.App) {
	app.Commands = append(app.Commands,
		sendCodeCommand,
		statusCommand,
		watchCommand,
	)
}

var sendCodeCommand = &cli.Command{
	Name:    "send-code",
	Aliases: []string{"sc"},
	Usage:   "Request a verification code and show the cooldown.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "channel",
			Aliases: []string{"c"},
			Usage:   "register or reset.",
			Value:   signpanel.ChannelRegister,
		},
		&cli.StringFlag{
			Name:     "email",
			Aliases:  []string{"e"},
			Usage:    "Address the code is sent to.",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    "detach",
			Aliases: []string{"d"},
			Usage:   "Return as soon as the code is sent instead of rendering the countdown.",
		},
	},
	Action: func(c *cli.Context) error {
		channel := c.String("channel")
		if err := checkChannel(channel); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		if !c.Bool("detach") {
			p.BindSendControl(channel, newTerminalControl(ctx, channel, c.App.Writer))
			p.Restore(ctx)
		}

		if err := p.SendCode(ctx, channel, c.String("email")); err != nil {
			if errors.Is(err, signpanel.ErrSendInFlight) {
				return cli.Exit(err.Error(), exitCooldownActive)
			}
			if errors.Is(err, signpanel.ErrCodeCooldownActive) {
				return cli.Exit(fmt.Sprintf("%s: %ds left", err, p.Remaining(ctx, channel)), exitCooldownActive)
			}
			return err
		}

		if c.Bool("detach") {
			return nil
		}
		return ignoreCanceled(p.Wait(ctx))
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Print the remaining cooldown of every channel.",
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, channel := range channels {
			if left := p.Remaining(c.Context, channel); left > 0 {
				fmt.Fprintf(c.App.Writer, "%-8s %ds\n", channel, left)
				continue
			}
			fmt.Fprintf(c.App.Writer, "%-8s ready\n", channel)
		}
		return nil
	},
}

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "Resume every persisted cooldown and render it until it expires.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Serve Prometheus metrics on this address while watching.",
			EnvVars: []string{"SIGNPANEL_METRICS_ADDR"},
		},
		&cli.BoolFlag{
			Name:  "otel-dump",
			Usage: "Print the panel's OpenTelemetry instruments when watching ends.",
		},
	},
	Action: func(c *cli.Context) (err error) {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		controls := make([]*terminalControl, 0, len(channels))
		for _, channel := range channels {
			control := newTerminalControl(ctx, channel, c.App.Writer)
			controls = append(controls, control)
			p.BindSendControl(channel, control)
		}
		if c.Bool("otel-dump") {
			dump, derr := startOTelDump(p)
			if derr != nil {
				return derr
			}
			defer func() {
				if derr := dump.finish(c.App.Writer); derr != nil && err == nil {
					err = derr
				}
			}()
		}

		p.Restore(ctx)

		if p.Running() == 0 {
			fmt.Fprintln(c.App.Writer, "no active cooldowns")
			return nil
		}

		var g errgroup.Group
		g.Go(func() error {
			defer stop()
			return ignoreCanceled(p.Wait(ctx))
		})
		g.Go(func() error {
			<-ctx.Done()
			for _, control := range controls {
				if disabled, label := control.state(); disabled {
					fmt.Fprintf(c.App.Writer, "[%s] interrupted at %s\n", control.channel, label)
				}
			}
			return nil
		})
		if addr := c.String("metrics-addr"); addr != "" {
			g.Go(func() error {
				return serveUntilDone(ctx, addr, prometheus.NewExporter(p).Handler())
			})
		}
		return g.Wait()
	},
}

func checkChannel(channel string) error {
	for _, known := range channels {
		if channel == known {
			return nil
		}
	}
	return fmt.Errorf("unknown channel %q (want register or reset)", channel)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

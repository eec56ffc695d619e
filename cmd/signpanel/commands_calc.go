package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/signpanel"
	"github.com/urfave/cli/v2"
)

func mountCalculatorCommands(app *cli.App) {
	app.Commands = append(app.Commands,
		sumCommand,
		evalCommand,
	)
}

var sumCommand = &cli.Command{
	Name:      "sum",
	Usage:     "Add two numbers on the backend.",
	ArgsUsage: "A B",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("sum takes exactly two operands", 2)
		}

		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		out, err := p.CalculateSum(c.Context, c.Args().Get(0), c.Args().Get(1))
		if out != "" {
			fmt.Fprintln(c.App.Writer, out)
		}
		return err
	},
}

var evalCommand = &cli.Command{
	Name:      "eval",
	Usage:     "Evaluate an arithmetic expression on the backend.",
	ArgsUsage: "EXPR...",
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		expr := p.FilterExpression(strings.Join(c.Args().Slice(), " "))
		out, err := p.Evaluate(c.Context, expr)
		var calcErr *signpanel.CalculatorError
		if errors.As(err, &calcErr) {
			return cli.Exit(calcErr.Message, 1)
		}
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintln(c.App.Writer, out)
		}
		return nil
	},
}

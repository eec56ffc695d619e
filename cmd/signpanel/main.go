package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:        "signpanel",
		Version:     version,
		Usage:       "Drive the sign-in panel from the terminal.",
		Description: "Sends verification codes with a persisted per-channel cooldown, submits the sign-up, sign-in and reset forms, and runs the calculators against the panel backend.",
		Flags:       globalFlags(),
	}
	mountCodeCommands(app)
	mountFormCommands(app)
	mountCalculatorCommands(app)
	mountServeCommands(app)

	app.Setup()
	return app
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/signpanel"
	"github.com/urfave/cli/v2"
)

func mountFormCommands(app *cli.App) {
	app.Commands = append(app.Commands,
		registerCommand,
		loginCommand,
		resetCommand,
		whoamiCommand,
		logoutCommand,
	)
}

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Create an account with a code from send-code --channel register.",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"SIGNPANEL_PASSWORD"}},
		&cli.StringFlag{Name: "password-again", Usage: "Defaults to --password."},
		&cli.StringFlag{Name: "code", Required: true},
	},
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		again := c.String("password-again")
		if !c.IsSet("password-again") {
			again = c.String("password")
		}
		p.ShowSignUp()
		return p.Register(c.Context, signpanel.RegisterRequest{
			Username:      c.String("username"),
			Email:         c.String("email"),
			Password:      c.String("password"),
			PasswordAgain: again,
			Code:          c.String("code"),
		})
	},
}

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "Sign in and keep the session in the store.",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"SIGNPANEL_PASSWORD"}},
	},
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = p.Login(c.Context, signpanel.LoginRequest{
			Username: c.String("username"),
			Password: c.String("password"),
		})
		return err
	},
}

var resetCommand = &cli.Command{
	Name:  "reset",
	Usage: "Set a new password with a code from send-code --channel reset.",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
		&cli.StringFlag{Name: "new-password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"SIGNPANEL_NEW_PASSWORD"}},
		&cli.StringFlag{Name: "confirm-password", Usage: "Defaults to --new-password."},
		&cli.StringFlag{Name: "code", Required: true},
	},
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		confirm := c.String("confirm-password")
		if !c.IsSet("confirm-password") {
			confirm = c.String("new-password")
		}
		p.ShowForgot()
		return p.ResetPassword(c.Context, signpanel.ResetRequest{
			Email:           c.String("email"),
			NewPassword:     c.String("new-password"),
			ConfirmPassword: confirm,
			Code:            c.String("code"),
		})
	},
}

var whoamiCommand = &cli.Command{
	Name:  "whoami",
	Usage: "Print the signed-in user.",
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := p.Session(c.Context)
		if errors.Is(err, signpanel.ErrNoSession) {
			return cli.Exit("not signed in", 1)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(c.App.Writer, session.Username)
		if !session.ExpiresAt.IsZero() {
			fmt.Fprintf(c.App.Writer, "expires in %s\n", time.Until(session.ExpiresAt).Round(time.Second))
		}
		return nil
	},
}

var logoutCommand = &cli.Command{
	Name:  "logout",
	Usage: "Forget the stored session.",
	Action: func(c *cli.Context) error {
		p, cleanup, err := openPanel(c, c.App.Writer)
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Logout(c.Context)
	},
}

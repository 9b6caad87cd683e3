package authapp

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"smart-fleet/internal/cli"
	"smart-fleet/internal/domain/fleet"
)

// Commands understood by Run.
const (
	CmdLogin    = "login"
	CmdRegister = "register"
	CmdLogout   = "logout"
	CmdStatus   = "status"
)

// ErrUsage marks bad command lines; the caller exits with status 2.
var ErrUsage = errors.New("usage error")

// Run executes one session command: login, register, logout or status.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command (login, register, logout, status)", ErrUsage)
	}
	cmd, rest := args[0], args[1:]

	app, err := cli.Bootstrap(ctx, "fleet-auth")
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdLogin:
		fs := flag.NewFlagSet(CmdLogin, flag.ContinueOnError)
		username := fs.String("username", "", "Account username")
		password := fs.String("password", os.Getenv("SMARTFLEET_PASSWORD"), "Account password (default $SMARTFLEET_PASSWORD)")
		if err := parse(fs, rest); err != nil {
			return err
		}
		user, err := app.Session.Login(ctx, fleet.Credentials{Username: *username, Password: *password})
		if err != nil {
			return err
		}
		printStatus(os.Stdout, app, user)
		return nil

	case CmdRegister:
		fs := flag.NewFlagSet(CmdRegister, flag.ContinueOnError)
		var reg fleet.Registration
		fs.StringVar(&reg.Username, "username", "", "Account username")
		fs.StringVar(&reg.Password, "password", os.Getenv("SMARTFLEET_PASSWORD"), "Account password (default $SMARTFLEET_PASSWORD)")
		fs.StringVar(&reg.Email, "email", "", "Contact email")
		fs.StringVar(&reg.FullName, "name", "", "Driver full name")
		fs.StringVar(&reg.License, "license", "", "Driving license number")
		if err := parse(fs, rest); err != nil {
			return err
		}
		user, err := app.Session.Register(ctx, reg)
		if err != nil {
			return err
		}
		printStatus(os.Stdout, app, user)
		return nil

	case CmdLogout:
		if err := app.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Signed out.")
		return nil

	case CmdStatus:
		printStatus(os.Stdout, app, app.Session.User())
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./smart-fleet --mode=auth %s [flags]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func printStatus(w io.Writer, app *cli.Client, user *fleet.User) {
	if !app.Session.IsAuthenticated() {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	if user == nil {
		fmt.Fprintln(w, "Signed in (no user details stored).")
		return
	}
	fmt.Fprintf(w, "Signed in as %s <%s>, role %s\n", user.Username, user.Email, app.Session.Role())
	if exp, ok := app.Session.ExpiresAt(); ok {
		fmt.Fprintf(w, "Token expires %s\n", exp.Local().Format(time.RFC1123))
	}
}

// Package admin implements authctl, the operator command line for the auth
// server: schema migration and account management.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const minPasswordLength = 6

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMissingArgument  = errors.New("missing argument")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters long", minPasswordLength)
)

// Accounts is the account management surface authctl drives.
type Accounts interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	SetActive(ctx context.Context, email string, active bool) (*models.User, error)
}

type App struct {
	accounts Accounts
	migrate  func(ctx context.Context) error
	in       *bufio.Reader
	out      io.Writer
}

func NewApp(accounts Accounts, migrate func(ctx context.Context) error, in io.Reader, out io.Writer) *App {
	return &App{accounts: accounts, migrate: migrate, in: bufio.NewReader(in), out: out}
}

const usage = `Usage: authctl [flags] <command> [args]

Commands:
  migrate             apply pending database migrations
  register [email]    create an account (prompts for the password)
  activate <email>    allow the account to sign in
  deactivate <email>  block the account from signing in
  help                show this message`

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrMissingArgument
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	case "migrate":
		return a.runMigrate(ctx)
	case "register":
		return a.register(ctx, rest)
	case "activate":
		return a.setActive(ctx, rest, true)
	case "deactivate":
		return a.setActive(ctx, rest, false)
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (a *App) runMigrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	fmt.Fprintln(a.out, "Migrations applied")
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = GetSimpleText(a.in, "Enter email", a.out); err != nil {
			return err
		}
	}
	if email == "" {
		return fmt.Errorf("%w: email", ErrMissingArgument)
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	repeat, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(repeat)

	if !bytes.Equal(password, repeat) {
		return ErrPasswordMismatch
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > common.MaxPasswordBytes {
		return common.ErrPasswordTooLong
	}

	user, err := a.accounts.Register(ctx, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id=%s, inactive)\n", user.Email, user.ID)
	return nil
}

func (a *App) setActive(ctx context.Context, args []string, active bool) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: email", ErrMissingArgument)
	}

	user, err := a.accounts.SetActive(ctx, args[0], active)
	if err != nil {
		return err
	}

	state := "inactive"
	if user.IsActive {
		state = "active"
	}
	fmt.Fprintf(a.out, "%s is now %s\n", user.Email, state)
	return nil
}

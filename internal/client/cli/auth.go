package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pwkeeper/internal/client/client"
)

// Prompt indirections, swapped in tests.
var (
	promptEmail       = PromptEmail
	promptPassword    = PromptPassword
	promptNewPassword = PromptNewPassword
)

// readCredentials asks for the email and then the password. A new account
// gets the confirmed prompt with the length hint.
func (a *App) readCredentials(newAccount bool) (string, string, error) {
	email, err := promptEmail(a.reader, a.out)
	if err != nil {
		return "", "", err
	}

	var pw []byte
	if newAccount {
		pw, err = promptNewPassword(a.out)
	} else {
		pw, err = promptPassword(a.out, "Password: ")
	}
	if err != nil {
		return "", "", err
	}
	password := string(pw)
	clear(pw)

	return email, password, nil
}

// Register prompts the user for an email and password and creates an
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials(true)
	if err != nil {
		a.report("Registration failed", err)
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Register(ctx, email, password)
	if err != nil {
		a.report("Registration failed", err)
		return err
	}

	fmt.Fprintf(a.out, "Registered %s\n", u.GetEmail())
	return nil
}

// Login prompts for credentials and opens a session for this device.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials(false)
	if err != nil {
		a.report("Login failed", err)
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Login(ctx, email, password, a.config.DeviceName); err != nil {
		a.report("Login failed", err)
		return err
	}

	a.email = email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Me(ctx)
	if err != nil {
		a.report("Request failed", err)
		return err
	}

	fmt.Fprintf(a.out, "id: %d\nemail: %s\nactive: %t\nsince: %s\n",
		u.GetId(), u.GetEmail(), u.GetIsActive(), u.GetCreatedAt().AsTime().Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Refresh(ctx); err != nil {
		a.report("Refresh failed", err)
		return err
	}

	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Logout(ctx); err != nil {
		a.report("Logout failed", err)
		return err
	}

	a.email = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.client.LogoutAll(ctx)
	if err != nil {
		a.report("Logout failed", err)
		return err
	}

	a.email = ""
	fmt.Fprintf(a.out, "Logged out of %d session(s)\n", n)
	return nil
}

func (a *App) report(what string, err error) {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.out, "%s: server unavailable\n", what)
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintf(a.out, "%s: not logged in\n", what)
	default:
		fmt.Fprintf(a.out, "%s: %v\n", what, err)
	}
}

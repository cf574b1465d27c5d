package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/onelinediary/client/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email and password and creates a new account. When
// the backend auto-confirms addresses the user ends up signed in; otherwise
// they confirm their email first and then log in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Register(ctx, email, string(password)); err != nil {
		fmt.Fprintln(a.out, "Registration failed:", err)
		return err
	}

	if a.client.LoggedIn() {
		a.email = email
		a.store.SetOnline(ctx, true)
		fmt.Fprintln(a.out, "Account created, you are signed in.")
	} else {
		fmt.Fprintln(a.out, "Account created. Confirm your email, then log in.")
	}
	return nil
}

// Login prompts for credentials and authenticates against the backend. When
// the server is unreachable the session cannot be established, but cached
// entries stay readable and writes queue up for later.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, email, string(password)); err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			fmt.Fprintln(a.out, "Server unavailable, working offline with cached entries.")
			a.store.SetOnline(ctx, false)
		} else {
			fmt.Fprintln(a.out, "Login failed:", err)
		}
		return err
	}

	a.email = email
	a.store.SetOnline(ctx, true)
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

// Logout drops the session. Cached entries and the pending queue survive for
// the next login on this device.
func (a *App) Logout(ctx context.Context) {
	a.client.Logout()
	a.email = ""
	fmt.Fprintln(a.out, "Logged out.")
}

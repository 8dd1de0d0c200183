package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/eventcheckin/internal/client/client"
)

// getSimpleText and getPassword are indirections swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Signup prompts for email, name and password and creates an account. The
// new session is stored by the auth service.
func (a *App) Signup(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter name", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	p, err := a.authService.Signup(ctx, email, name, password)
	if err != nil {
		return a.report("Signup unsuccessful", err)
	}

	a.setEmail(p.Email)
	printlnFn("Welcome,", p.Name)
	return nil
}

// Signin prompts for credentials and opens a session.
func (a *App) Signin(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	p, err := a.authService.Signin(ctx, email, password)
	if err != nil {
		return a.report("Signin unsuccessful", err)
	}

	a.setEmail(p.Email)
	printlnFn("Signed in as", p.Email)
	return nil
}

// Me prints the profile of the signed-in user. An expired access token is
// refreshed by the client on the way.
func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	p, err := a.authService.Me(ctx)
	if err != nil {
		return a.report("Profile unavailable", err)
	}

	a.setEmail(p.Email)
	printlnFn(p.String())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	err := a.authService.Logout(ctx)
	switch {
	case err == nil:
		printlnFn("Signed out")
	case errors.Is(err, client.ErrUnavailable):
		printlnFn("Signed out locally, server unreachable")
	default:
		return a.report("Logout unsuccessful", err)
	}
	a.setEmail("")
	return err
}

// report prints err for the user and returns it. A revoked session is
// dropped locally, so the prompt stops showing the old email.
func (a *App) report(what string, err error) error {
	if errors.Is(err, client.ErrForbidden) || errors.Is(err, client.ErrNotSignedIn) {
		a.setEmail("")
	}
	printlnFn(what+":", err)
	return err
}

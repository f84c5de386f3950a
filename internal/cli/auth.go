package cli

import (
	"context"
	"os"
)

// getSimpleText and getToken are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getToken = GetToken

// Login prompts the user for an auth token and starts a session with it.
// The token is opaque to the client: it is attached as a bearer credential
// and round-tripped to the realtime listener, never inspected. An empty
// token leaves the app logged out.
func (a *App) Login(ctx context.Context) error {
	token, err := getToken(os.Stdout)
	if err != nil {
		return err
	}

	a.store.SetToken(token)
	if token == "" {
		printlnFn("No token entered, staying logged out.")
		return nil
	}

	a.startSession(ctx)
	printlnFn("Session started.")
	return nil
}

// Logout drops the token and tears the realtime listener down. Queued
// offline mutations stay in the cache and replay on the next session.
func (a *App) Logout(ctx context.Context) error {
	a.closeListener()
	a.store.SetToken("")
	printlnFn("Logged out.")
	return nil
}

package meta

import "errors"

// Precondition and outcome errors of the connect flow. Every failure is
// terminal for the triggering action; the user retries manually.
var (
	// ErrInsecureTransport is returned before any login attempt when the
	// configured redirect URL is neither https nor a local-development
	// host.
	ErrInsecureTransport = errors.New("facebook login requires a secure (https) redirect URL")

	// ErrSDKTimeout is returned when the connector does not become ready
	// within the polling budget.
	ErrSDKTimeout = errors.New("the ads SDK did not become ready; check your connection or ad blockers")

	// ErrLoginDeclined is returned when the user cancels or does not
	// authorize the login.
	ErrLoginDeclined = errors.New("login cancelled or not authorized by the user")

	// ErrNoCredential is returned when an operation needs the in-session
	// access credential and none is held.
	ErrNoCredential = errors.New("session credential expired or missing; reconnect Facebook")

	// ErrNoData marks a valid insights response with zero records. It is
	// informational, distinct from a hard failure.
	ErrNoData = errors.New("no data found for the last 7 days on this account")
)

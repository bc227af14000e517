package rcon

import "errors"

// Terminal session failures, matched with errors.Is. An unknown opcode
// is deliberately not an error: it produces a diagnostic console line
// and the session carries on.
var (
	// ErrConnectionTimedOut means the server never answered within the
	// receive timeout while a reply was required.
	ErrConnectionTimedOut = errors.New("connection timed out")

	// ErrProtocolMismatch means the server refused this client's
	// protocol revision.
	ErrProtocolMismatch = errors.New("server refused protocol version")

	// ErrAccessDenied means the client address is banned.
	ErrAccessDenied = errors.New("address is banned on this server")

	// ErrAuthentication means the password digest was rejected.
	ErrAuthentication = errors.New("invalid console password")

	// ErrNotConnected reports an operation that needs an established
	// session.
	ErrNotConnected = errors.New("session is not established")
)

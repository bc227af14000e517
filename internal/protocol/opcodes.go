// Package protocol defines the datagram framing spoken with the game
// server's remote console: a single opcode byte followed by an
// opcode-shaped payload. Whole-datagram compression lives in
// internal/huffman and session rules in internal/rcon; this package
// knows only how frames are laid out.
package protocol

// Constants fixed by the server side of the wire.
const (
	// Version is the console protocol revision sent with every
	// connection request. Servers refuse anything else.
	Version byte = 4

	// SaltLength is the exact size of the authentication challenge.
	SaltLength = 32

	// MaxDatagramSize bounds a single datagram in either direction.
	MaxDatagramSize = 4096

	// DefaultPort is the port game servers listen on unless moved.
	DefaultPort = 10666
)

// Client to server opcodes.
const (
	PktBeginConnection    byte = 52 // payload: protocol version byte
	PktPassword           byte = 53 // payload: hex digest of salt + password
	PktCommand            byte = 54 // payload: console command text
	PktPong               byte = 55 // keep-alive, empty payload
	PktDisconnect         byte = 56 // teardown notice, empty payload
	PktTabCompleteRequest byte = 57 // payload: partial token to complete
)

// Server to client opcodes.
const (
	PktOldProtocol         byte = 32 // client protocol version refused
	PktBanned              byte = 33 // client address is banned
	PktSalt                byte = 34 // payload: 32-byte challenge salt
	PktLoggedIn            byte = 35 // authentication accepted
	PktInvalidPassword     byte = 36 // authentication rejected
	PktMessage             byte = 37 // payload: console output text
	PktUpdate              byte = 38 // payload: update kind + kind-shaped body
	PktTabComplete         byte = 39 // payload: completion candidate list
	PktTooManyTabCompletes byte = 40 // payload: candidate count only
)

// Update kinds. These appear as the first payload byte of PktUpdate and
// also as bare opcodes on the server's unreliable send path, where the
// same body follows directly.
const (
	UpdatePlayers    byte = 0
	UpdateAdminCount byte = 1
	UpdateMap        byte = 2
)

// IsUpdateOpcode reports whether op is one of the update kinds servers
// emit as top-level opcodes.
func IsUpdateOpcode(op byte) bool {
	return op <= UpdateMap
}

var opcodeNames = map[byte]string{
	PktBeginConnection:     "BeginConnection",
	PktPassword:            "Password",
	PktCommand:             "Command",
	PktPong:                "Pong",
	PktDisconnect:          "Disconnect",
	PktTabCompleteRequest:  "TabCompleteRequest",
	PktOldProtocol:         "OldProtocol",
	PktBanned:              "Banned",
	PktSalt:                "Salt",
	PktLoggedIn:            "LoggedIn",
	PktInvalidPassword:     "InvalidPassword",
	PktMessage:             "Message",
	PktUpdate:              "Update",
	PktTabComplete:         "TabComplete",
	PktTooManyTabCompletes: "TooManyTabCompletes",
	UpdatePlayers:          "UpdatePlayers",
	UpdateAdminCount:       "UpdateAdminCount",
	UpdateMap:              "UpdateMap",
}

// OpcodeName returns a readable name for log output, or "Unknown" for
// opcodes outside the tables above.
func OpcodeName(op byte) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "Unknown"
}

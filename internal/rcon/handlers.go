package rcon

import (
	"fmt"
	"strings"
	"time"

	"github.com/zanrcon-project/zanrcon/internal/protocol"
)

// handleSalt answers the authentication challenge. Each salt received
// before login produces exactly one password frame; a server resending
// its salt gets the digest again. Salts after login are stale and
// ignored.
func (s *Session) handleSalt(pkt protocol.Packet) error {
	s.mu.Lock()
	if s.state == StateEstablished {
		s.mu.Unlock()
		s.log.Debug().Msg("salt after login ignored")
		return nil
	}
	password := s.password
	s.mu.Unlock()

	salt, err := protocol.ReadSalt(pkt.Payload)
	if err != nil {
		return err
	}

	digest := protocol.LoginDigest(salt, password)
	if err := s.send(protocol.BuildPassword(digest)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateAwaitingLogin
	s.mu.Unlock()

	s.log.Debug().Msg("password digest sent")
	return nil
}

func (s *Session) handleLoggedIn(protocol.Packet) error {
	s.mu.Lock()
	s.state = StateEstablished
	s.password = ""
	remote := s.remote
	s.mu.Unlock()

	s.log.Info().Str("server", remote).Msg("logged in")
	return nil
}

func (s *Session) handleInvalidPassword(protocol.Packet) error {
	return ErrAuthentication
}

func (s *Session) handleBanned(protocol.Packet) error {
	return ErrAccessDenied
}

func (s *Session) handleOldProtocol(protocol.Packet) error {
	return ErrProtocolMismatch
}

// handleMessage forwards console text to the output stream. Messages
// carry their own line breaks; nothing is added or trimmed here.
func (s *Session) handleMessage(pkt protocol.Packet) error {
	s.emit(s.formatter(pkt.Text()))
	return nil
}

// handleUpdate folds a reliable update into the advisory server state.
// Updates produce no console output, and a body this client cannot
// parse is dropped rather than allowed to end the session: the data is
// advisory.
func (s *Session) handleUpdate(pkt protocol.Packet) error {
	if len(pkt.Payload) == 0 {
		s.log.Debug().Msg("empty update packet")
		return nil
	}
	update, err := protocol.ParseUpdate(pkt.Payload[0], pkt.Payload[1:])
	if err != nil {
		s.log.Debug().Err(err).Msg("unparseable update")
		return nil
	}
	s.applyUpdate(update)
	return nil
}

// handleUnreliableUpdate covers update kinds arriving as top-level
// opcodes on the server's unreliable path. Their text is displayed
// like a message, and anything parseable also feeds the advisory
// state.
func (s *Session) handleUnreliableUpdate(pkt protocol.Packet) error {
	if update, err := protocol.ParseUpdate(pkt.Opcode, pkt.Payload); err == nil {
		s.applyUpdate(update)
	}
	s.emit(s.formatter(pkt.Text()))
	return nil
}

func (s *Session) handleTabComplete(pkt protocol.Packet) error {
	candidates, err := protocol.ParseTabComplete(pkt.Payload)
	if err != nil {
		s.log.Debug().Err(err).Msg("unparseable completion list")
		s.emit(s.formatter(pkt.Text()))
		return nil
	}
	if len(candidates) == 0 {
		s.emit("No completions.\n")
		return nil
	}
	s.emit(strings.Join(candidates, "  ") + "\n")
	return nil
}

func (s *Session) handleTooManyTabCompletes(pkt protocol.Packet) error {
	s.emit(fmt.Sprintf("%d possible completions; type more first.\n",
		protocol.CompletionCount(pkt.Payload)))
	return nil
}

func (s *Session) applyUpdate(update protocol.ServerUpdate) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	switch update.Kind {
	case protocol.UpdatePlayers:
		s.serverState.Players = update.Players
	case protocol.UpdateAdminCount:
		s.serverState.AdminCount = update.AdminCount
	case protocol.UpdateMap:
		s.serverState.MapName = update.MapName
	}
	s.serverState.UpdatedAt = time.Now()
}

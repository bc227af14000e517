package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPacket reports a frame that violates the layout its
// opcode promises: an empty datagram, a short salt, or an update body
// that ends mid-field.
var ErrMalformedPacket = errors.New("malformed packet")

// Packet is one decoded frame: opcode plus whatever payload followed it.
type Packet struct {
	Opcode  byte
	Payload []byte
}

// ParsePacket splits a decoded datagram into opcode and payload. An
// empty datagram has no opcode and is malformed.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, fmt.Errorf("empty datagram: %w", ErrMalformedPacket)
	}
	return Packet{Opcode: data[0], Payload: data[1:]}, nil
}

// Text interprets the payload as console text. Servers occasionally
// emit bytes outside UTF-8; those are replaced rather than rejected so
// a bad character cannot take down a session.
func (p Packet) Text() string {
	return sanitizeText(p.Payload)
}

// ReadSalt extracts the authentication challenge. The protocol fixes
// its size at SaltLength bytes; servers may append data afterwards,
// which is ignored.
func ReadSalt(payload []byte) ([]byte, error) {
	if len(payload) < SaltLength {
		return nil, fmt.Errorf("salt is %d bytes, want %d: %w", len(payload), SaltLength, ErrMalformedPacket)
	}
	salt := make([]byte, SaltLength)
	copy(salt, payload[:SaltLength])
	return salt, nil
}

// ServerUpdate is the parsed body of an update packet, top-level or
// embedded. Only the fields for its Kind are populated.
type ServerUpdate struct {
	Kind       byte
	MapName    string
	Players    []string
	AdminCount int
}

// ParseUpdate decodes an update body of the given kind. PktUpdate
// payloads carry the kind as their first byte; unreliable top-level
// packets carry it in the opcode itself.
func ParseUpdate(kind byte, body []byte) (ServerUpdate, error) {
	r := bytes.NewReader(body)
	update := ServerUpdate{Kind: kind}

	switch kind {
	case UpdatePlayers:
		count, err := r.ReadByte()
		if err != nil {
			return update, fmt.Errorf("player update without count: %w", ErrMalformedPacket)
		}
		update.Players = make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			name, err := readString(r)
			if err != nil {
				return update, fmt.Errorf("player update names %d of %d: %w", i, count, ErrMalformedPacket)
			}
			update.Players = append(update.Players, name)
		}

	case UpdateAdminCount:
		count, err := r.ReadByte()
		if err != nil {
			return update, fmt.Errorf("admin update without count: %w", ErrMalformedPacket)
		}
		update.AdminCount = int(count)

	case UpdateMap:
		// Map names are null-terminated on the wire but some builds
		// send the bare string; accept either.
		name, err := readString(r)
		if err != nil && name == "" {
			return update, fmt.Errorf("map update without name: %w", ErrMalformedPacket)
		}
		update.MapName = name

	default:
		return update, fmt.Errorf("update kind %d: %w", kind, ErrMalformedPacket)
	}

	return update, nil
}

// ParseTabComplete decodes a completion candidate list: a count byte
// followed by that many null-terminated strings.
func ParseTabComplete(payload []byte) ([]string, error) {
	r := bytes.NewReader(payload)
	count, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("completion list without count: %w", ErrMalformedPacket)
	}
	candidates := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		s, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("completion list entry %d of %d: %w", i, count, ErrMalformedPacket)
		}
		candidates = append(candidates, s)
	}
	return candidates, nil
}

// CompletionCount decodes the candidate total from a
// PktTooManyTabCompletes payload.
func CompletionCount(payload []byte) int {
	if len(payload) >= 2 {
		return int(binary.LittleEndian.Uint16(payload))
	}
	if len(payload) == 1 {
		return int(payload[0])
	}
	return 0
}

// readString reads a null-terminated string. Reaching the end of the
// reader before a terminator returns what was read along with io.EOF.
func readString(r *bytes.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func sanitizeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

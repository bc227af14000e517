package rcon

import (
	"sync/atomic"
	"time"
)

// State is the session's position in its lifecycle. It only ever moves
// forward: handshake states lead to StateEstablished, and every path
// out of the session ends at StateDisconnected for good.
type State int32

const (
	StateDisconnected State = iota
	StateAwaitingHello
	StateAwaitingSalt
	StateAwaitingLogin
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateAwaitingSalt:
		return "awaiting_salt"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// ServerState is the advisory picture of the remote server assembled
// from update packets. It trails reality by whatever the server's send
// cadence is; treat it as informational.
type ServerState struct {
	MapName    string    `json:"map_name"`
	Players    []string  `json:"players"`
	AdminCount int       `json:"admin_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stats are cumulative wire counters for one session.
type Stats struct {
	DatagramsSent     uint64 `json:"datagrams_sent"`
	DatagramsReceived uint64 `json:"datagrams_received"`
	BytesSent         uint64 `json:"bytes_sent"`
	BytesReceived     uint64 `json:"bytes_received"`
	KeepAlivesSent    uint64 `json:"keepalives_sent"`
	DecodeFailures    uint64 `json:"decode_failures"`
	LinesEmitted      uint64 `json:"lines_emitted"`
}

type counters struct {
	datagramsSent     atomic.Uint64
	datagramsReceived atomic.Uint64
	bytesSent         atomic.Uint64
	bytesReceived     atomic.Uint64
	keepAlives        atomic.Uint64
	decodeFailures    atomic.Uint64
	linesEmitted      atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		DatagramsSent:     c.datagramsSent.Load(),
		DatagramsReceived: c.datagramsReceived.Load(),
		BytesSent:         c.bytesSent.Load(),
		BytesReceived:     c.bytesReceived.Load(),
		KeepAlivesSent:    c.keepAlives.Load(),
		DecodeFailures:    c.decodeFailures.Load(),
		LinesEmitted:      c.linesEmitted.Load(),
	}
}

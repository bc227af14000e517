// Package rcon implements the remote console session: connection
// handshake, salted password authentication, command submission,
// server output streaming, keep-alive, and teardown, all over
// Huffman-compressed UDP datagrams.
package rcon

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zanrcon-project/zanrcon/internal/huffman"
	"github.com/zanrcon-project/zanrcon/internal/protocol"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

// Defaults applied by NewSession for zero Config fields.
const (
	// DefaultReceiveTimeout bounds every socket read. The server drops
	// consoles it has not heard from in ten seconds, so the established
	// loop answers each expiry with a keep-alive.
	DefaultReceiveTimeout = 4 * time.Second

	// DefaultOutputBuffer is the capacity of the console output channel.
	DefaultOutputBuffer = 256
)

// Config tunes a session. The zero value selects the defaults.
type Config struct {
	// ReceiveTimeout bounds every socket read. Before login an expiry
	// is fatal; once established it triggers a keep-alive instead.
	ReceiveTimeout time.Duration

	// OutputBuffer is the capacity of the console output channel.
	OutputBuffer int

	// Formatter rewrites server text before it reaches the output
	// channel; display markup handling lives outside this package.
	// nil passes text through untouched.
	Formatter func(string) string

	// Recorder receives traffic counts as datagrams move. nil discards.
	Recorder Recorder
}

type handlerFunc func(*Session, protocol.Packet) error

// Session drives one console connection from Connect through
// Disconnect. It is not reusable; create a new Session to reconnect.
// All methods are safe for concurrent use.
type Session struct {
	codec     *huffman.Codec
	timeout   time.Duration
	formatter func(string) string
	recorder  Recorder
	log       zerolog.Logger

	handlers map[byte]handlerFunc

	mu              sync.Mutex
	conn            *net.UDPConn
	state           State
	stopping        bool
	err             error
	password        string
	remote          string
	listenerStarted bool

	output chan string
	done   chan struct{}

	listenerExited chan struct{}
	finishOnce     sync.Once

	stateMu     sync.RWMutex
	serverState ServerState

	ctr counters
}

// NewSession creates a session speaking through the given codec. The
// codec is the session's only route to the wire format; sessions never
// touch a datagram except through it.
func NewSession(codec *huffman.Codec, cfg Config) *Session {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = DefaultOutputBuffer
	}
	if cfg.Formatter == nil {
		cfg.Formatter = func(s string) string { return s }
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	s := &Session{
		codec:          codec,
		timeout:        cfg.ReceiveTimeout,
		formatter:      cfg.Formatter,
		recorder:       cfg.Recorder,
		log:            util.ComponentLogger("session"),
		output:         make(chan string, cfg.OutputBuffer),
		done:           make(chan struct{}),
		listenerExited: make(chan struct{}),
	}

	s.handlers = map[byte]handlerFunc{
		protocol.PktSalt:                (*Session).handleSalt,
		protocol.PktLoggedIn:            (*Session).handleLoggedIn,
		protocol.PktInvalidPassword:     (*Session).handleInvalidPassword,
		protocol.PktBanned:              (*Session).handleBanned,
		protocol.PktOldProtocol:         (*Session).handleOldProtocol,
		protocol.PktMessage:             (*Session).handleMessage,
		protocol.PktUpdate:              (*Session).handleUpdate,
		protocol.PktTabComplete:         (*Session).handleTabComplete,
		protocol.PktTooManyTabCompletes: (*Session).handleTooManyTabCompletes,
		protocol.UpdatePlayers:          (*Session).handleUnreliableUpdate,
		protocol.UpdateAdminCount:       (*Session).handleUnreliableUpdate,
		protocol.UpdateMap:              (*Session).handleUnreliableUpdate,
	}
	return s
}

// Connect opens the socket, runs the handshake, and authenticates.
// It returns once the server has accepted the login and the listener
// is running, or with the terminal error otherwise. There is no retry:
// a server that stays silent past the receive timeout fails the
// connection attempt outright.
func (s *Session) Connect(ctx context.Context, address, password string) error {
	s.mu.Lock()
	if s.state != StateDisconnected || s.stopping {
		s.mu.Unlock()
		return fmt.Errorf("session already used (state %s)", s.state)
	}
	s.state = StateAwaitingHello
	s.mu.Unlock()

	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		err = fmt.Errorf("failed to resolve %s: %w", address, err)
		s.shutdown(err)
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		err = fmt.Errorf("failed to open socket: %w", err)
		s.shutdown(err)
		return err
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("session closed during connect")
	}
	s.conn = conn
	s.password = password
	s.remote = raddr.String()
	s.mu.Unlock()

	// Cancelling ctx expires the blocked handshake read immediately.
	handshakeDone := make(chan struct{})
	defer close(handshakeDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-handshakeDone:
		}
	}()

	s.log.Info().Str("server", raddr.String()).Msg("connecting")

	if err := s.send(protocol.BuildBeginConnection()); err != nil {
		s.shutdown(err)
		return err
	}

	buf := make([]byte, protocol.MaxDatagramSize)
	for s.State() != StateEstablished {
		pkt, err := s.readPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else if isTimeout(err) {
				err = fmt.Errorf("no reply from %s: %w", raddr.String(), ErrConnectionTimedOut)
			}
			s.shutdown(err)
			return err
		}

		s.mu.Lock()
		if s.state == StateAwaitingHello {
			s.state = StateAwaitingSalt
		}
		s.mu.Unlock()

		if err := s.dispatch(pkt); err != nil {
			s.shutdown(err)
			return err
		}
	}

	s.mu.Lock()
	s.listenerStarted = true
	s.mu.Unlock()
	go s.listen()

	return nil
}

// SendCommand submits one console command to the server.
func (s *Session) SendCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("refusing to send empty command")
	}
	if s.State() != StateEstablished {
		return ErrNotConnected
	}
	return s.send(protocol.BuildCommand(command))
}

// SendTabComplete asks the server to complete a partial token. The
// reply arrives on the output stream like any other console text.
func (s *Session) SendTabComplete(partial string) error {
	if s.State() != StateEstablished {
		return ErrNotConnected
	}
	return s.send(protocol.BuildTabComplete(partial))
}

// Disconnect tears the session down: one teardown notice to the server
// when the session got as far as logging in, then the socket closes and
// the listener drains out before Disconnect returns. Repeated calls do
// nothing and return nil. Errors on the way down are logged and the
// first one is returned; the session ends regardless.
func (s *Session) Disconnect() error {
	err := s.shutdown(nil)
	s.awaitListener()
	return err
}

// Output streams server console text and session diagnostics. The
// channel is never closed; Done signals the end of the stream.
func (s *Session) Output() <-chan string {
	return s.output
}

// Done closes when the session has ended for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports what ended the session, or nil after a clean disconnect.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsEstablished reports whether the session is logged in and listening.
func (s *Session) IsEstablished() bool {
	return s.State() == StateEstablished
}

// Remote returns the resolved server address, or "" before Connect.
func (s *Session) Remote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// ServerState returns the advisory server snapshot.
func (s *Session) ServerState() ServerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	snap := s.serverState
	snap.Players = append([]string(nil), s.serverState.Players...)
	return snap
}

// Stats returns cumulative wire counters.
func (s *Session) Stats() Stats {
	return s.ctr.snapshot()
}

// send encodes one frame and writes it as a single datagram.
func (s *Session) send(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	stopping := s.stopping
	s.mu.Unlock()
	if conn == nil || stopping {
		return ErrNotConnected
	}

	wire := s.codec.Encode(frame)
	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("failed to send %s: %w", protocol.OpcodeName(frame[0]), err)
	}

	s.ctr.datagramsSent.Add(1)
	s.ctr.bytesSent.Add(uint64(len(wire)))
	s.recorder.DatagramSent(frame[0], len(wire))
	return nil
}

// readPacket reads one datagram under the receive timeout and decodes
// it into a frame. Socket errors come back verbatim for the caller to
// classify; decode and framing errors are terminal for the datagram.
func (s *Session) readPacket(buf []byte) (protocol.Packet, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return protocol.Packet{}, ErrNotConnected
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return protocol.Packet{}, fmt.Errorf("failed to arm read deadline: %w", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return protocol.Packet{}, err
	}

	s.ctr.datagramsReceived.Add(1)
	s.ctr.bytesReceived.Add(uint64(n))

	decoded, err := s.codec.Decode(buf[:n])
	if err != nil {
		s.ctr.decodeFailures.Add(1)
		s.recorder.DecodeFailure()
		return protocol.Packet{}, err
	}

	pkt, err := protocol.ParsePacket(decoded)
	if err != nil {
		return protocol.Packet{}, err
	}
	s.recorder.DatagramReceived(pkt.Opcode, n)
	return pkt, nil
}

// dispatch routes one frame through the handler registry. A missing
// entry is a diagnostic, not a failure.
func (s *Session) dispatch(pkt protocol.Packet) error {
	handler, ok := s.handlers[pkt.Opcode]
	if !ok {
		s.log.Warn().
			Uint8("opcode", pkt.Opcode).
			Int("payload_bytes", len(pkt.Payload)).
			Msg("unknown opcode")
		s.emit(fmt.Sprintf("[server:%d] Unknown packet\n", pkt.Opcode))
		return nil
	}

	s.log.Debug().
		Str("packet", protocol.OpcodeName(pkt.Opcode)).
		Int("payload_bytes", len(pkt.Payload)).
		Msg("dispatch")
	return handler(s, pkt)
}

// shutdown moves the session to its terminal state exactly once:
// teardown notice when logged in, socket closed, terminal cause
// recorded. It never blocks on the listener; Disconnect layers that
// wait on top.
func (s *Session) shutdown(cause error) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	conn := s.conn
	notify := s.state == StateEstablished
	s.mu.Unlock()

	var firstErr error
	if notify && conn != nil {
		wire := s.codec.Encode(protocol.BuildDisconnect())
		if _, err := conn.Write(wire); err != nil {
			firstErr = fmt.Errorf("failed to send disconnect notice: %w", err)
			s.log.Warn().Err(err).Msg("failed to send disconnect notice")
		} else {
			s.ctr.datagramsSent.Add(1)
			s.ctr.bytesSent.Add(uint64(len(wire)))
			s.recorder.DatagramSent(protocol.PktDisconnect, len(wire))
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close socket")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close socket: %w", err)
			}
		}
	}

	s.finish(cause)
	return firstErr
}

// finish records the terminal cause and signals Done, once.
func (s *Session) finish(cause error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.err = cause
		s.state = StateDisconnected
		s.password = ""
		s.mu.Unlock()

		close(s.done)

		if cause != nil {
			s.log.Error().Err(cause).Msg("session ended")
		} else {
			s.log.Info().Msg("session ended")
		}
	})
}

// emit hands text to the output stream, blocking while the buffer is
// full so server output is never reordered or dropped mid-session.
// Session end releases any blocked emit.
func (s *Session) emit(text string) {
	select {
	case s.output <- text:
		s.ctr.linesEmitted.Add(1)
	case <-s.done:
	}
}

func (s *Session) halting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Session) awaitListener() {
	s.mu.Lock()
	started := s.listenerStarted
	s.mu.Unlock()
	if started {
		<-s.listenerExited
	}
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}

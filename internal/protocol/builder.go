package protocol

import (
	"bytes"
	"fmt"
)

// PacketBuilder constructs outbound console frames. Text payloads are
// raw UTF-8 with neither terminator nor length prefix; the datagram
// boundary is the frame boundary.
type PacketBuilder struct {
	buf bytes.Buffer
}

// NewPacketBuilder creates a builder opened with the given opcode.
func NewPacketBuilder(opcode byte) *PacketBuilder {
	b := &PacketBuilder{}
	b.buf.WriteByte(opcode)
	return b
}

// WriteByte appends a single byte.
func (b *PacketBuilder) WriteByte(v byte) *PacketBuilder {
	b.buf.WriteByte(v)
	return b
}

// WriteText appends string bytes verbatim.
func (b *PacketBuilder) WriteText(s string) *PacketBuilder {
	b.buf.WriteString(s)
	return b
}

// WriteBytes appends raw bytes.
func (b *PacketBuilder) WriteBytes(data []byte) *PacketBuilder {
	b.buf.Write(data)
	return b
}

// Build returns the constructed frame.
func (b *PacketBuilder) Build() []byte {
	return b.buf.Bytes()
}

// Len returns the current size of the frame being built.
func (b *PacketBuilder) Len() int {
	return b.buf.Len()
}

// String returns a hex dump of the current frame for debugging.
func (b *PacketBuilder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("PacketBuilder[%d bytes]: %x", len(data), data)
}

// ---- Pre-built packet constructors ----

// BuildBeginConnection creates the connection request that opens every
// session.
func BuildBeginConnection() []byte {
	return NewPacketBuilder(PktBeginConnection).
		WriteByte(Version).
		Build()
}

// BuildPassword creates the authentication reply carrying the salted
// digest as ASCII text.
func BuildPassword(digest string) []byte {
	return NewPacketBuilder(PktPassword).
		WriteText(digest).
		Build()
}

// BuildCommand creates a console command frame.
func BuildCommand(command string) []byte {
	return NewPacketBuilder(PktCommand).
		WriteText(command).
		Build()
}

// BuildPong creates the keep-alive frame.
func BuildPong() []byte {
	return NewPacketBuilder(PktPong).Build()
}

// BuildDisconnect creates the teardown notice.
func BuildDisconnect() []byte {
	return NewPacketBuilder(PktDisconnect).Build()
}

// BuildTabComplete creates a completion request for a partial token.
func BuildTabComplete(partial string) []byte {
	return NewPacketBuilder(PktTabCompleteRequest).
		WriteText(partial).
		Build()
}

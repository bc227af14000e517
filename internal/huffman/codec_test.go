package huffman

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(DefaultTable)
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	rng := rand.New(rand.NewSource(42))
	noise := make([]byte, 512)
	rng.Read(noise)

	allBytes := make([]byte, 256)
	for i := range allBytes {
		allBytes[i] = byte(i)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x36}},
		{"command text", []byte("\x36map map07")},
		{"zero heavy", append(make([]byte, 200), []byte("ticcmd")...)},
		{"all byte values", allBytes},
		{"random noise", noise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := c.Encode(tt.input)
			dec, err := c.Decode(enc)
			require.NoError(t, err)
			require.Equal(t, len(tt.input), len(dec))
			require.True(t, bytes.Equal(tt.input, dec))
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := newTestCodec(t)
	b := newTestCodec(t)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		input := make([]byte, rng.Intn(300))
		rng.Read(input)
		require.Equal(t, a.Encode(input), b.Encode(input))
	}
}

func TestZeroHeavyPayloadShrinks(t *testing.T) {
	c := newTestCodec(t)

	input := make([]byte, 128)
	enc := c.Encode(input)
	require.Less(t, len(enc), len(input))
	require.LessOrEqual(t, enc[0], byte(7))

	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, input, dec)
}

func TestIncompressibleFallsBackToRaw(t *testing.T) {
	c := newTestCodec(t)

	// With the header counted a one-byte payload can never beat the
	// raw form, so it always ships raw.
	for _, b := range []byte{0x00, 0x42, 0xFF} {
		enc := c.Encode([]byte{b})
		require.Equal(t, []byte{0xFF, b}, enc)
	}

	require.Equal(t, []byte{0xFF}, c.Encode(nil))
}

func TestDecodeRaw(t *testing.T) {
	c := newTestCodec(t)

	dec, err := c.Decode([]byte{0xFF})
	require.NoError(t, err)
	require.Empty(t, dec)

	dec, err = c.Decode([]byte{0xFF, 'a', 'b', 'c'})
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), dec)
}

func TestDecodeCorruptInput(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty datagram", nil},
		{"padding of eight", []byte{8, 0x00}},
		{"padding out of range", []byte{31, 0x00, 0x00}},
		{"padding exceeds stream", []byte{3}},
		{"single dangling bit", []byte{7, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.input)
			require.ErrorIs(t, err, ErrCorruptStream)
		})
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	c := newTestCodec(t)

	enc := c.Encode(make([]byte, 256))
	require.LessOrEqual(t, enc[0], byte(7)) // must be coded, not raw

	// Chopping trailing bytes while keeping the header either strands
	// the walker mid-symbol or silently shortens the payload; both are
	// acceptable only as long as nothing panics and valid input still
	// round-trips afterwards.
	for cut := 1; cut < len(enc)-1; cut++ {
		_, _ = c.Decode(enc[:len(enc)-cut])
	}

	dec, err := c.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 256), dec)
}

func BenchmarkEncode(b *testing.B) {
	c, err := NewCodec(DefaultTable)
	if err != nil {
		b.Fatal(err)
	}
	payload := append(make([]byte, 400), []byte("fraglimit 50")...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Encode(payload)
	}
}

func BenchmarkDecode(b *testing.B) {
	c, err := NewCodec(DefaultTable)
	if err != nil {
		b.Fatal(err)
	}
	enc := c.Encode(append(make([]byte, 400), []byte("fraglimit 50")...))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Decode(enc); err != nil {
			b.Fatal(err)
		}
	}
}

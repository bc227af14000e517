// Package huffman implements the shared-dictionary Huffman coding used
// by the game server's network layer. Both peers derive an identical
// code tree from a fixed frequency table, so no dictionary ever crosses
// the wire: a datagram is either the coded bitstream behind a one-byte
// padding count, or, when coding would not shrink it, the raw payload
// behind a sentinel header.
package huffman

import (
	"errors"
	"fmt"
)

// ErrCorruptStream reports a datagram that cannot be a valid encoding:
// an empty input, an impossible padding header, or a bitstream that
// ends in the middle of a symbol.
var ErrCorruptStream = errors.New("corrupt huffman stream")

// rawSentinel in the header byte marks an uncompressed payload.
// Ordinary headers carry the pad bit count of the final byte (0-7).
const rawSentinel = 0xFF

// maxCodeBits bounds the per-symbol code length. The default table
// stays far below this; the limit only guards degenerate caller tables.
const maxCodeBits = 32

type node struct {
	zero, one *node
	value     byte
	leaf      bool
}

type symbolCode struct {
	bits uint32 // first branch from the root in bit 0
	size uint8
}

// Codec holds the code tree and per-symbol codes derived from one
// frequency table. It is immutable after construction and safe for
// concurrent use.
type Codec struct {
	root  *node
	codes [256]symbolCode
}

// NewCodec derives the code tree from table. Construction is fully
// deterministic: equal tables always yield codecs that produce
// identical bitstreams, which is what keeps the two ends of the wire
// in agreement.
func NewCodec(table FrequencyTable) (*Codec, error) {
	c := &Codec{root: buildTree(&table)}
	if err := c.deriveCodes(c.root, 0, 0); err != nil {
		return nil, err
	}
	return c, nil
}

// buildTree merges the two lightest live nodes until one remains.
// Ties resolve to the lowest index, the second minimum becomes the
// zero branch, and the merged node takes the first minimum's slot;
// the server's construction makes the same choices.
func buildTree(table *FrequencyTable) *node {
	nodes := make([]*node, 256)
	for i := range nodes {
		nodes[i] = &node{value: byte(i), leaf: true}
	}
	weights := make([]uint64, 256)
	for i, w := range table {
		weights[i] = uint64(w)
	}

	for len(nodes) > 1 {
		lo1, lo2 := 0, 1
		if weights[lo2] < weights[lo1] {
			lo1, lo2 = lo2, lo1
		}
		for i := 2; i < len(nodes); i++ {
			if weights[i] < weights[lo1] {
				lo2 = lo1
				lo1 = i
			} else if weights[i] < weights[lo2] {
				lo2 = i
			}
		}

		nodes[lo1] = &node{one: nodes[lo1], zero: nodes[lo2]}
		weights[lo1] += weights[lo2]
		nodes = append(nodes[:lo2], nodes[lo2+1:]...)
		weights = append(weights[:lo2], weights[lo2+1:]...)
	}
	return nodes[0]
}

func (c *Codec) deriveCodes(n *node, bits uint32, depth uint8) error {
	if n.leaf {
		c.codes[n.value] = symbolCode{bits: bits, size: depth}
		return nil
	}
	if depth == maxCodeBits {
		return fmt.Errorf("frequency table produces codes longer than %d bits", maxCodeBits)
	}
	if err := c.deriveCodes(n.zero, bits, depth+1); err != nil {
		return err
	}
	return c.deriveCodes(n.one, bits|1<<depth, depth+1)
}

// Encode compresses src into a self-describing datagram. The first
// byte is the count of unused bits in the final byte, or the raw
// sentinel when the coded form would be as large as src plus the
// header, in which case src follows verbatim. An empty src encodes to
// the bare sentinel.
func (c *Codec) Encode(src []byte) []byte {
	var nbits int
	for _, b := range src {
		nbits += int(c.codes[b].size)
	}

	coded := 1 + (nbits+7)/8
	if coded >= len(src)+1 {
		out := make([]byte, len(src)+1)
		out[0] = rawSentinel
		copy(out[1:], src)
		return out
	}

	out := make([]byte, coded)
	pos := 0
	for _, b := range src {
		sc := c.codes[b]
		for i := uint8(0); i < sc.size; i++ {
			if sc.bits&(1<<i) != 0 {
				out[1+pos>>3] |= 1 << (pos & 7)
			}
			pos++
		}
	}
	out[0] = byte((coded-1)*8 - nbits)
	return out
}

// Decode reverses Encode. It never reads past the declared bit count,
// so hostile input fails with ErrCorruptStream instead of producing
// garbage or panicking.
func (c *Codec) Decode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty datagram: %w", ErrCorruptStream)
	}

	pad := src[0]
	if pad == rawSentinel {
		out := make([]byte, len(src)-1)
		copy(out, src[1:])
		return out, nil
	}
	if pad > 7 {
		return nil, fmt.Errorf("padding header %d: %w", pad, ErrCorruptStream)
	}

	nbits := (len(src)-1)*8 - int(pad)
	if nbits < 0 {
		return nil, fmt.Errorf("padding exceeds stream: %w", ErrCorruptStream)
	}

	out := make([]byte, 0, len(src)*2)
	n := c.root
	for pos := 0; pos < nbits; pos++ {
		if src[1+pos>>3]&(1<<(pos&7)) != 0 {
			n = n.one
		} else {
			n = n.zero
		}
		if n.leaf {
			out = append(out, n.value)
			n = c.root
		}
	}
	if n != c.root {
		return nil, fmt.Errorf("truncated symbol: %w", ErrCorruptStream)
	}
	return out, nil
}

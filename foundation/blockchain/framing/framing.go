// Package framing recovers discrete messages from the boundary-less byte
// stream of a peer connection. Each connection owns its own Framer.
package framing

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxFrameSize is the largest message a connection will buffer. A peer that
// sends more than this without completing a message is dropped.
const MaxFrameSize = 32 << 20

// ErrFrameTooLarge is returned when a message exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Framer wraps outbound payloads and reassembles inbound ones. A Framer keeps
// state across calls to Feed and is not safe for concurrent use.
type Framer interface {

	// Frame returns the bytes to write on the wire for the payload.
	Frame(payload []byte) []byte

	// Feed accepts the next chunk read from the connection and returns every
	// payload completed by it, in arrival order. Incomplete bytes are kept
	// for the next call.
	Feed(chunk []byte) ([][]byte, error)

	// Buffered returns the number of bytes waiting for more data.
	Buffered() int
}

// =============================================================================

// Mode identifies a framing scheme.
type Mode string

// Set of framing schemes a node can speak.
const (
	ModeLength   Mode = "length"
	ModeBoundary Mode = "boundary"
)

// New constructs a framer for the specified mode.
func New(mode Mode) (Framer, error) {
	switch mode {
	case ModeLength:
		return &Length{}, nil
	case ModeBoundary:
		return &Boundary{}, nil
	}

	return nil, fmt.Errorf("unknown framing mode %q", mode)
}

// =============================================================================

// Length frames every payload with a 4 byte big endian length header.
type Length struct {
	buf []byte
}

// Frame implements the Framer interface.
func (l *Length) Frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)

	return out
}

// Feed implements the Framer interface.
func (l *Length) Feed(chunk []byte) ([][]byte, error) {
	l.buf = append(l.buf, chunk...)

	var frames [][]byte
	for len(l.buf) >= 4 {
		size := binary.BigEndian.Uint32(l.buf)
		if size > MaxFrameSize {
			l.buf = nil
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
		}

		end := 4 + int(size)
		if len(l.buf) < end {
			break
		}

		frames = append(frames, bytes.Clone(l.buf[4:end]))
		l.buf = l.buf[end:]
	}

	if len(frames) > 0 {
		l.buf = retain(l.buf)
	}

	return frames, nil
}

// Buffered implements the Framer interface.
func (l *Length) Buffered() int {
	return len(l.buf)
}

// =============================================================================

// boundary is the byte sequence found between two back to back JSON objects.
var boundary = []byte("}{")

// Boundary splits the stream wherever one JSON object ends and the next one
// begins. Payloads are written with no delimiter. This only works when no
// field value contains the boundary sequence, a payload that does will be
// split in the wrong place and fail to decode.
type Boundary struct {
	buf []byte
}

// Frame implements the Framer interface.
func (b *Boundary) Frame(payload []byte) []byte {
	return bytes.Clone(payload)
}

// Feed implements the Framer interface.
func (b *Boundary) Feed(chunk []byte) ([][]byte, error) {
	b.buf = append(b.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.Index(b.buf, boundary)
		if i < 0 {
			break
		}

		// The closing brace ends this frame and the opening brace stays
		// behind as the start of the next one.
		frames = append(frames, bytes.Clone(b.buf[:i+1]))
		b.buf = b.buf[i+1:]
	}

	if len(frames) > 0 {
		b.buf = retain(b.buf)
	}

	// Whatever is left is either one complete object or the start of one
	// still in flight.
	if len(b.buf) > 0 && json.Valid(b.buf) {
		frames = append(frames, bytes.Clone(b.buf))
		b.buf = nil
	}

	if len(b.buf) > MaxFrameSize {
		b.buf = nil
		return frames, fmt.Errorf("%w: incomplete message buffered", ErrFrameTooLarge)
	}

	return frames, nil
}

// Buffered implements the Framer interface.
func (b *Boundary) Buffered() int {
	return len(b.buf)
}

// =============================================================================

// retain copies the bytes left over after frames were cut from the front of
// a buffer, so the backing array holding the consumed frames can be freed.
func retain(rest []byte) []byte {
	if len(rest) == 0 {
		return nil
	}

	return bytes.Clone(rest)
}

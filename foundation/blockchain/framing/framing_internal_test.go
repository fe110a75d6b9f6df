package framing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLengthReleasesConsumedFrames(t *testing.T) {
	l := &Length{}

	big := l.Frame(bytes.Repeat([]byte("x"), 1<<20))
	next := l.Frame([]byte(`{"type":0}`))

	frames, err := l.Feed(append(big, next[:3]...))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Len(t, frames[0], 1<<20)

	// Only the partial header stays referenced.
	require.Equal(t, 3, l.Buffered())
	require.Less(t, cap(l.buf), 1<<10)

	frames, err = l.Feed(next[3:])
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte(`{"type":0}`)}, frames)
	require.Zero(t, l.Buffered())
}

func TestBoundaryReleasesConsumedFrames(t *testing.T) {
	b := &Boundary{}

	big := []byte(`{"type":4,"data":"` + string(bytes.Repeat([]byte("x"), 1<<20)) + `"}`)

	frames, err := b.Feed(append(big, []byte(`{"type"`)...))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, big, frames[0])

	require.Equal(t, len(`{"type"`), b.Buffered())
	require.Less(t, cap(b.buf), 1<<10)

	frames, err = b.Feed([]byte(`:0}`))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte(`{"type":0}`)}, frames)
	require.Zero(t, b.Buffered())
}

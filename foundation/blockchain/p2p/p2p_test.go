package p2p_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/framing"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func newNode(t *testing.T, mode framing.Mode) (*p2p.Node, *state.State) {
	return newNodeWith(t, p2p.Config{Framing: mode})
}

// newNodeWith starts a node on a random local port. The state and host
// fields of cfg are filled in.
func newNodeWith(t *testing.T, cfg p2p.Config) (*p2p.Node, *state.State) {
	rules, err := database.NewRules(1, database.HashPrefixed)
	require.NoError(t, err)

	st, err := state.New(state.Config{Rules: rules, Host: "127.0.0.1:0"})
	require.NoError(t, err)

	cfg.State = st
	cfg.Host = "127.0.0.1:0"

	n, err := p2p.New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start())

	return n, st
}

// recorder keeps every event a node reports.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) handler(v string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, fmt.Sprintf(v, args...))
}

// has reports if an event containing every one of the parts was recorded.
func (r *recorder) has(parts ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

next:
	for _, ev := range r.events {
		for _, part := range parts {
			if !strings.Contains(ev, part) {
				continue next
			}
		}
		return true
	}

	return false
}

// readLatestBlock reads from the connection until the node answers with its
// latest block.
func readLatestBlock(t *testing.T, conn net.Conn) database.Block {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))

	reader := &framing.Length{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)

		frames, err := reader.Feed(buf[:n])
		require.NoError(t, err)

		for _, frame := range frames {
			msg, err := message.Decode(frame)
			require.NoError(t, err)

			if rlb, ok := msg.(message.ReceiveLatestBlock); ok {
				return rlb.Block
			}
		}
	}
}

func port(t *testing.T, n *p2p.Node) int {
	addr, ok := n.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}

func mine(t *testing.T, st *state.State, blocks int) {
	for i := 0; i < blocks; i++ {
		_, err := st.MineNewBlock(context.Background(), "data")
		require.NoError(t, err)
	}
}

func TestNodesConverge(t *testing.T) {
	for _, mode := range []framing.Mode{framing.ModeLength, framing.ModeBoundary} {
		t.Run(string(mode), func(t *testing.T) {
			defer goleak.VerifyNone(t)

			a, stA := newNode(t, mode)
			defer a.Shutdown()

			b, stB := newNode(t, mode)
			defer b.Shutdown()

			// A is ahead by more than one block so B has to fetch the chain.
			mine(t, stA, 3)

			require.NoError(t, b.ConnectToPeer(context.Background(), "127.0.0.1", port(t, a)))

			require.Eventually(t, func() bool {
				return stB.RetrieveChainLength() == 4
			}, waitFor, tick)
			require.Equal(t, stA.RetrieveChain(), stB.RetrieveChain())

			// A single new block is appended from the broadcast.
			mine(t, stA, 1)
			require.NoError(t, a.BroadcastLatest())

			require.Eventually(t, func() bool {
				return stB.RetrieveChainLength() == 5
			}, waitFor, tick)
			require.Equal(t, stA.RetrieveChain(), stB.RetrieveChain())
			require.NoError(t, stB.RetrieveRules().ValidateChain(stB.RetrieveChain()))
		})
	}
}

func TestShorterChainIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, stA := newNode(t, framing.ModeLength)
	defer a.Shutdown()

	b, stB := newNode(t, framing.ModeLength)
	defer b.Shutdown()

	mine(t, stA, 1)
	mine(t, stB, 3)
	before := stB.RetrieveChain()

	require.NoError(t, b.ConnectToPeer(context.Background(), "127.0.0.1", port(t, a)))

	// A adopts the longer chain of B, B keeps its own.
	require.Eventually(t, func() bool {
		return stA.RetrieveChainLength() == 4
	}, waitFor, tick)
	require.Equal(t, before, stB.RetrieveChain())
}

func TestListPeers(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := newNode(t, framing.ModeLength)
	defer a.Shutdown()

	b, _ := newNode(t, framing.ModeLength)
	defer b.Shutdown()

	require.NoError(t, b.ConnectToPeers(context.Background(), []string{a.Addr().String()}))

	// The outbound peer advertises its listen port through the handshake.
	want := b.Addr().String()
	require.Eventually(t, func() bool {
		peers := a.ListPeers()
		return len(peers) == 1 && peers[0] == want
	}, waitFor, tick)

	require.Equal(t, []string{a.Addr().String()}, b.ListPeers())
}

func TestConnectToPeersReportsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := newNode(t, framing.ModeLength)
	defer a.Shutdown()

	b, _ := newNode(t, framing.ModeLength)
	defer b.Shutdown()

	// Grab a free port nobody listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := l.Addr().String()
	require.NoError(t, l.Close())

	err = b.ConnectToPeers(context.Background(), []string{closed, a.Addr().String(), "no-port"})
	require.Error(t, err)

	// The reachable peer is still connected.
	require.Eventually(t, func() bool {
		return len(b.ListPeers()) == 1
	}, waitFor, tick)
}

func TestBadMessagesKeepConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := newNode(t, framing.ModeLength)
	defer a.Shutdown()

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	f := &framing.Length{}
	for _, raw := range []string{`not json`, `{"type":9}`, `{"type":1}`, `{"type":0}`} {
		_, err := conn.Write(f.Frame([]byte(raw)))
		require.NoError(t, err)
	}

	// The node sends its own request and handshake first, then answers the
	// only valid request it was sent.
	require.Equal(t, database.Genesis(), readLatestBlock(t, conn))
}

func TestRejectedMessagesReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	var rec recorder
	a, stA := newNodeWith(t, p2p.Config{Framing: framing.ModeLength, EvHandler: rec.handler})
	defer a.Shutdown()

	rules := stA.RetrieveRules()
	genesis := database.Genesis()

	// Both blocks link to the local tip but fail validation.
	valid, err := rules.POW(context.Background(), genesis, "data", func(string, ...any) {})
	require.NoError(t, err)

	tampered := valid
	tampered.Data = "tampered"

	unsolved := database.Block{Index: 1, PreviousHash: genesis.Hash, Timestamp: valid.Timestamp, Data: "unsolved"}
	for unsolved.Hash = rules.Hash(unsolved); rules.IsHashSolved(unsolved.Hash); unsolved.Hash = rules.Hash(unsolved) {
		unsolved.Nonce++
	}

	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	f := &framing.Length{}
	for _, msg := range []message.Message{
		message.ReceiveLatestBlock{Block: tampered},
		message.ReceiveLatestBlock{Block: unsolved},
	} {
		raw, err := message.Encode(msg)
		require.NoError(t, err)

		_, err = conn.Write(f.Frame(raw))
		require.NoError(t, err)
	}

	for _, raw := range []string{`{"type":9}`, `{"type":1,"data":"oops"}`, `{"type":0}`} {
		_, err := conn.Write(f.Frame([]byte(raw)))
		require.NoError(t, err)
	}

	// The connection is still served after the rejected messages.
	require.Equal(t, genesis, readLatestBlock(t, conn))
	require.Equal(t, 1, stA.RetrieveChainLength())
	require.Len(t, a.ListPeers(), 1)

	for _, parts := range [][]string{
		{"WARNING", "invalid block[1]", database.ErrInvalidHash.Error()},
		{"WARNING", "invalid block[1]", database.ErrHashNotSolved.Error()},
		{"WARNING", "unrecognized message type 9"},
		{"WARNING", "parse message"},
	} {
		require.Truef(t, rec.has(parts...), "missing event with %q", parts)
	}
}

func TestStalledPeerDoesNotBlockSync(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, stA := newNodeWith(t, p2p.Config{Framing: framing.ModeLength, WriteTimeout: 200 * time.Millisecond})
	defer a.Shutdown()

	b, stB := newNode(t, framing.ModeLength)
	defer b.Shutdown()

	mine(t, stB, 3)

	// This client asks for the chain over and over and never reads the
	// answers, so the node's writes to it eventually stall.
	stalled, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer stalled.Close()

	if tcp, ok := stalled.(*net.TCPConn); ok {
		require.NoError(t, tcp.SetReadBuffer(1024))
	}

	f := &framing.Length{}
	frame := f.Frame([]byte(`{"type":2}`))
	flood := make([]byte, 0, len(frame)*200_000)
	for i := 0; i < 200_000; i++ {
		flood = append(flood, frame...)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stalled.Write(flood)
	}()

	require.NoError(t, b.ConnectToPeer(context.Background(), "127.0.0.1", port(t, a)))

	require.Eventually(t, func() bool {
		return stA.RetrieveChainLength() == 4
	}, 3*waitFor, tick)
	require.Equal(t, stB.RetrieveChain(), stA.RetrieveChain())

	stalled.Close()
	<-done
}

func TestShutdownClosesPeers(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, _ := newNode(t, framing.ModeLength)
	b, _ := newNode(t, framing.ModeLength)
	defer b.Shutdown()

	require.NoError(t, b.ConnectToPeer(context.Background(), "127.0.0.1", port(t, a)))
	require.Eventually(t, func() bool {
		return len(a.ListPeers()) == 1
	}, waitFor, tick)

	a.Shutdown()
	require.Empty(t, a.ListPeers())

	require.Eventually(t, func() bool {
		return len(b.ListPeers()) == 0
	}, waitFor, tick)

	err := a.ConnectToPeer(context.Background(), "127.0.0.1", port(t, b))
	require.ErrorIs(t, err, p2p.ErrShutdown)
}

func TestNewRequiresValidConfig(t *testing.T) {
	_, err := p2p.New(p2p.Config{Framing: framing.ModeLength})
	require.Error(t, err)

	st, err := state.New(state.Config{Rules: database.Rules{Difficulty: 1}})
	require.NoError(t, err)

	_, err = p2p.New(p2p.Config{State: st, Framing: "newline"})
	require.Error(t, err)
}

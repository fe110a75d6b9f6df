// Package p2p accepts and dials the TCP connections between nodes and routes
// the messages read from them into the state.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/framing"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"golang.org/x/sync/errgroup"
)

// Set of errors returned when registering a connection.
var (
	ErrDuplicatePeer = errors.New("peer already connected")
	ErrShutdown      = errors.New("node is shutting down")
)

// dialTimeout bounds how long a dial to a peer can take.
const dialTimeout = 10 * time.Second

// Config represents the configuration required to start the p2p node. A
// zero WriteTimeout uses peer.DefaultWriteTimeout.
type Config struct {
	State        *state.State
	Host         string
	Framing      framing.Mode
	WriteTimeout time.Duration
	EvHandler    state.EventHandler
}

// Node manages the peer connections for the blockchain.
type Node struct {
	state        *state.State
	host         string
	framing      framing.Mode
	writeTimeout time.Duration
	evHandler    state.EventHandler

	// dispatch makes message handling run to completion, one message at a
	// time across every connection.
	dispatch sync.Mutex

	mu         sync.Mutex
	listener   net.Listener
	listenPort int
	shut       chan struct{}
	wg         sync.WaitGroup
}

// New constructs a node ready to be started.
func New(cfg Config) (*Node, error) {
	if cfg.State == nil {
		return nil, errors.New("state is required")
	}

	if _, err := framing.New(cfg.Framing); err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	n := Node{
		state:        cfg.State,
		host:         cfg.Host,
		framing:      cfg.Framing,
		writeTimeout: cfg.WriteTimeout,
		evHandler:    ev,
		shut:         make(chan struct{}),
	}

	return &n, nil
}

// Start opens the listener on the configured host and begins accepting
// connections from other nodes.
func (n *Node) Start() error {
	l, err := net.Listen("tcp", n.host)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.host, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.listener = l
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		n.listenPort = addr.Port
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.acceptOperations(l)
	}()

	n.evHandler("p2p: Start: listening: addr[%s]", l.Addr())

	return nil
}

// Addr returns the address the node is listening on, or nil if the node
// hasn't been started.
func (n *Node) Addr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// Shutdown stops accepting connections, closes every peer connection and
// waits for their goroutines to finish.
func (n *Node) Shutdown() {
	n.evHandler("p2p: shutdown: started")
	defer n.evHandler("p2p: shutdown: completed")

	n.mu.Lock()
	select {
	case <-n.shut:
		n.mu.Unlock()
		return
	default:
	}
	close(n.shut)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Unlock()

	n.closeConnections()
	n.wg.Wait()
}

// =============================================================================

// ConnectToPeer dials the peer and registers the connection.
func (n *Node) ConnectToPeer(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	if err := n.register(conn); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	n.evHandler("p2p: ConnectToPeer: connected: peer[%s]", addr)

	return nil
}

// ConnectToPeers dials the set of host:port addresses concurrently. Every
// address is attempted and the first failure is returned.
func (n *Node) ConnectToPeers(ctx context.Context, hosts []string) error {
	var g errgroup.Group

	for _, hostPort := range hosts {
		g.Go(func() error {
			host, portStr, err := net.SplitHostPort(hostPort)
			if err != nil {
				return fmt.Errorf("parse %q: %w", hostPort, err)
			}

			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("parse %q: %w", hostPort, err)
			}

			if err := n.ConnectToPeer(ctx, host, port); err != nil {
				n.evHandler("p2p: ConnectToPeers: WARNING: %s", err)
				return err
			}

			return nil
		})
	}

	return g.Wait()
}

// BroadcastLatest sends the latest block to every connected peer.
func (n *Node) BroadcastLatest() error {
	return n.state.NetBroadcastLatestBlock()
}

// ListPeers returns the endpoints of the connected peers.
func (n *Node) ListPeers() []string {
	infos := n.state.RetrieveKnownPeers()

	endpoints := make([]string, len(infos))
	for i, info := range infos {
		endpoints[i] = info.Endpoint()
	}

	return endpoints
}

// =============================================================================

// acceptOperations registers every inbound connection until the listener
// is closed.
func (n *Node) acceptOperations(l net.Listener) {
	n.evHandler("p2p: acceptOperations: G started")
	defer n.evHandler("p2p: acceptOperations: G completed")

	for {
		conn, err := l.Accept()
		if err != nil {
			if n.isShutdown() || errors.Is(err, net.ErrClosed) {
				return
			}

			n.evHandler("p2p: acceptOperations: WARNING: %s", err)
			continue
		}

		if err := n.register(conn); err != nil {
			n.evHandler("p2p: acceptOperations: remote[%s]: WARNING: %s", conn.RemoteAddr(), err)
		}
	}
}

// register adds the connection to the known peers, starts reading from it
// and sends the initial sync probe.
func (n *Node) register(conn net.Conn) error {
	framer, err := framing.New(n.framing)
	if err != nil {
		conn.Close()
		return err
	}

	c, err := peer.NewConn(conn, framer, n.writeTimeout)
	if err != nil {
		conn.Close()
		return err
	}

	n.mu.Lock()
	if n.isShutdown() {
		n.mu.Unlock()
		conn.Close()
		return ErrShutdown
	}

	if !n.state.AddKnownPeer(c) {
		n.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: %s", ErrDuplicatePeer, c.Peer())
	}

	listenPort := n.listenPort

	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		n.readOperations(c)
	}()

	n.evHandler("p2p: register: new peer connected: peer[%s]", c.Peer())

	if err := n.state.NetSendToPeer(c.Peer(), message.RequestLatestBlock{}); err != nil {
		n.evHandler("p2p: register: peer[%s]: WARNING: %s", c.Peer(), err)
	}

	if listenPort > 0 {
		if err := n.state.NetSendToPeer(c.Peer(), message.Handshake{Port: listenPort}); err != nil {
			n.evHandler("p2p: register: peer[%s]: WARNING: %s", c.Peer(), err)
		}
	}

	return nil
}

// closeConnections closes every registered connection. The read goroutines
// see the error and unregister them.
func (n *Node) closeConnections() {
	for _, info := range n.state.RetrieveKnownPeers() {
		if c, exists := n.state.LookupKnownPeer(info.Peer); exists {
			if err := c.Close(); err != nil {
				n.evHandler("p2p: closeConnections: peer[%s]: WARNING: %s", info.Peer, err)
			}
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (n *Node) isShutdown() bool {
	select {
	case <-n.shut:
		return true
	default:
		return false
	}
}

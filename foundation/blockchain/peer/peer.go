// Package peer maintains the set of live peer connections and provides
// the write operations used to talk to them.
package peer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/framing"
)

// Peer represents the remote endpoint of a connection.
type Peer struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// New contructs a new peer value.
func New(host string, port int) Peer {
	return Peer{
		Host: host,
		Port: port,
	}
}

// FromAddr constructs the peer for the remote address of a connection.
func FromAddr(addr net.Addr) (Peer, error) {
	if addr == nil {
		return Peer{}, errors.New("missing remote address")
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Peer{}, fmt.Errorf("split %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Peer{}, fmt.Errorf("port %q: %w", portStr, err)
	}

	return New(host, port), nil
}

// Equal reports if both values identify the same remote address and port.
func (p Peer) Equal(other Peer) bool {
	return p.Host == other.Host && p.Port == other.Port
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// =============================================================================

// DefaultWriteTimeout bounds how long a single write to a peer may block.
const DefaultWriteTimeout = 10 * time.Second

// Conn is a live connection to a peer. It owns the framer holding the bytes
// received from the peer that don't form a complete message yet.
type Conn struct {
	peer         Peer
	conn         net.Conn
	framer       framing.Framer
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu         sync.Mutex
	listenPort int
}

// NewConn binds the connection to its remote peer and framer. A write that
// doesn't complete within writeTimeout closes the connection. A zero value
// uses DefaultWriteTimeout.
func NewConn(conn net.Conn, framer framing.Framer, writeTimeout time.Duration) (*Conn, error) {
	p, err := FromAddr(conn.RemoteAddr())
	if err != nil {
		return nil, err
	}

	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	c := Conn{
		peer:         p,
		conn:         conn,
		framer:       framer,
		writeTimeout: writeTimeout,
	}

	return &c, nil
}

// Peer returns the remote endpoint of the connection.
func (c *Conn) Peer() Peer {
	return c.peer
}

// Framer returns the framer for reading from this connection. Only the
// goroutine reading the connection may call Feed on it.
func (c *Conn) Framer() framing.Framer {
	return c.framer
}

// Read reads the next chunk of bytes from the connection.
func (c *Conn) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// Send frames the payload and writes it to the peer. Writes to the same
// connection never interleave. A peer that stops reading can hold a writer
// for at most the write timeout; any failed write closes the connection so
// its reader unregisters it.
func (c *Conn) Send(payload []byte) error {
	data := c.framer.Frame(payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.conn.Close()
		return fmt.Errorf("write deadline %s: %w", c.peer, err)
	}

	if _, err := c.conn.Write(data); err != nil {
		c.conn.Close()
		return fmt.Errorf("write %s: %w", c.peer, err)
	}

	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// SetListenPort records the port the peer said it accepts connections on.
func (c *Conn) SetListenPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listenPort = port
}

// Info returns the information used to display this connection.
func (c *Conn) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Info{
		Peer:       c.peer,
		ListenPort: c.listenPort,
	}
}

// =============================================================================

// Info describes a registered connection.
type Info struct {
	Peer       Peer `json:"peer"`
	ListenPort int  `json:"listen_port,omitempty"`
}

// Endpoint returns the address other nodes can dial to reach this peer when
// it has been advertised, otherwise the remote end of the connection.
func (i Info) Endpoint() string {
	if i.ListenPort > 0 {
		return New(i.Peer.Host, i.ListenPort).String()
	}
	return i.Peer.String()
}

// =============================================================================

// PeerSet represents the set of live connections. A remote endpoint is only
// ever registered once.
type PeerSet struct {
	mu    sync.RWMutex
	conns []*Conn
}

// NewPeerSet constructs a new set to manage live connections.
func NewPeerSet() *PeerSet {
	return &PeerSet{}
}

// Add registers the connection unless a connection for the same remote
// endpoint already exists. It returns false for a duplicate.
func (ps *PeerSet) Add(c *Conn) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.find(c.peer) >= 0 {
		return false
	}

	ps.conns = append(ps.conns, c)
	return true
}

// Remove unregisters the connection for the specified peer. It returns
// false if the peer wasn't registered.
func (ps *PeerSet) Remove(p Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	i := ps.find(p)
	if i < 0 {
		return false
	}

	ps.conns = append(ps.conns[:i], ps.conns[i+1:]...)
	return true
}

// Lookup returns the connection for the specified peer.
func (ps *PeerSet) Lookup(p Peer) (*Conn, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	i := ps.find(p)
	if i < 0 {
		return nil, false
	}

	return ps.conns[i], true
}

// Conns returns a snapshot of the registered connections.
func (ps *PeerSet) Conns() []*Conn {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	conns := make([]*Conn, len(ps.conns))
	copy(conns, ps.conns)

	return conns
}

// Copy returns a read-only listing of the registered connections.
func (ps *PeerSet) Copy() []Info {
	conns := ps.Conns()

	infos := make([]Info, len(conns))
	for i, c := range conns {
		infos[i] = c.Info()
	}

	return infos
}

// Len returns the number of registered connections.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.conns)
}

// Send writes the payload to the specified peer.
func (ps *PeerSet) Send(p Peer, payload []byte) error {
	c, exists := ps.Lookup(p)
	if !exists {
		return fmt.Errorf("peer %s is not connected", p)
	}

	return c.Send(payload)
}

// Broadcast writes the payload to every connection registered at the time
// of the call. Failed writes are returned by peer.
func (ps *PeerSet) Broadcast(payload []byte) map[Peer]error {
	var failed map[Peer]error
	for _, c := range ps.Conns() {
		if err := c.Send(payload); err != nil {
			if failed == nil {
				failed = make(map[Peer]error)
			}
			failed[c.peer] = err
		}
	}

	return failed
}

// find returns the position of the peer or -1. The caller must hold the lock.
func (ps *PeerSet) find(p Peer) int {
	for i, c := range ps.conns {
		if c.peer.Equal(p) {
			return i
		}
	}

	return -1
}

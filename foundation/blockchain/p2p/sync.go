package p2p

import (
	"errors"
	"io"
	"net"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// readBufferSize is the size of a single read from a connection.
const readBufferSize = 64 << 10

// readOperations reads from the connection until it fails or is closed.
// Every complete frame is decoded and handled in arrival order.
func (n *Node) readOperations(c *peer.Conn) {
	p := c.Peer()

	n.evHandler("p2p: readOperations: G started: peer[%s]", p)
	defer n.evHandler("p2p: readOperations: G completed: peer[%s]", p)

	defer func() {
		c.Close()
		n.state.RemoveKnownPeer(p)
	}()

	buf := make([]byte, readBufferSize)
	for {
		nr, err := c.Read(buf)
		if nr > 0 {
			frames, ferr := c.Framer().Feed(buf[:nr])
			for _, frame := range frames {
				n.handleFrame(c, frame)
			}

			if ferr != nil {
				n.evHandler("p2p: readOperations: peer[%s]: ERROR: %s", p, ferr)
				return
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				n.evHandler("p2p: readOperations: peer[%s]: connection closed", p)
			default:
				n.evHandler("p2p: readOperations: peer[%s]: ERROR: %s", p, err)
			}
			return
		}
	}
}

// handleFrame decodes the frame and dispatches the message. Errors are
// reported and the connection is kept open.
func (n *Node) handleFrame(c *peer.Conn, frame []byte) {
	msg, err := message.Decode(frame)
	if err != nil {
		n.evHandler("p2p: handleFrame: peer[%s]: WARNING: %s", c.Peer(), err)
		return
	}

	n.dispatch.Lock()
	defer n.dispatch.Unlock()

	n.evHandler("p2p: handleFrame: peer[%s]: msg[%s]", c.Peer(), msg.Type())

	if err := n.handleMessage(c, msg); err != nil {
		n.evHandler("p2p: handleFrame: peer[%s]: msg[%s]: WARNING: %s", c.Peer(), msg.Type(), err)
	}
}

// handleMessage applies the sync rules for a message received from a peer.
func (n *Node) handleMessage(c *peer.Conn, msg message.Message) error {
	switch m := msg.(type) {
	case message.RequestLatestBlock:
		return n.state.NetSendToPeer(c.Peer(), message.ReceiveLatestBlock{Block: n.state.RetrieveLatestBlock()})

	case message.RequestChain:
		return n.state.NetSendToPeer(c.Peer(), message.ReceiveChain{Chain: n.state.RetrieveChain()})

	case message.ReceiveLatestBlock:
		return n.handleLatestBlock(c, m.Block)

	case message.ReceiveChain:
		return n.state.ReplaceChain(m.Chain)

	case message.Handshake:
		c.SetListenPort(m.Port)
		return nil

	default:
		return &message.ProtocolError{Type: msg.Type()}
	}
}

// handleLatestBlock appends the block when it extends the local chain and
// asks for the whole chain when the peer is further ahead. A block that is
// behind or at the same height is ignored.
func (n *Node) handleLatestBlock(c *peer.Conn, block database.Block) error {
	latest := n.state.RetrieveLatestBlock()

	switch {
	case latest.Hash == block.PreviousHash:
		return n.state.AddBlock(block)

	case block.Index > latest.Index:
		n.evHandler("p2p: handleLatestBlock: peer[%s]: peer ahead: local[%d]: remote[%d]", c.Peer(), latest.Index, block.Index)
		return n.state.NetSendToPeer(c.Peer(), message.RequestChain{})

	default:
		n.evHandler("p2p: handleLatestBlock: peer[%s]: ignored: local[%d]: remote[%d]", c.Peer(), latest.Index, block.Index)
		return nil
	}
}

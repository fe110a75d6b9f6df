package state

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// AddKnownPeer registers a live connection. It returns false if a connection
// for the same remote endpoint is already registered.
func (s *State) AddKnownPeer(c *peer.Conn) bool {
	return s.knownPeers.Add(c)
}

// RemoveKnownPeer unregisters the connection for the peer.
func (s *State) RemoveKnownPeer(p peer.Peer) bool {
	return s.knownPeers.Remove(p)
}

// LookupKnownPeer returns the live connection for the peer.
func (s *State) LookupKnownPeer(p peer.Peer) (*peer.Conn, bool) {
	return s.knownPeers.Lookup(p)
}

// NetSendToPeer encodes the message and writes it to the specified peer.
func (s *State) NetSendToPeer(p peer.Peer, msg message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return err
	}

	s.evHandler("state: NetSendToPeer: peer[%s]: msg[%s]", p, msg.Type())

	return s.knownPeers.Send(p, data)
}

// NetBroadcast encodes the message and writes it to every connected peer.
// A failed write closes the peer's connection, which removes it from the set.
func (s *State) NetBroadcast(msg message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return err
	}

	s.evHandler("state: NetBroadcast: started: msg[%s]: peers[%d]", msg.Type(), s.knownPeers.Len())
	defer s.evHandler("state: NetBroadcast: completed")

	for p, err := range s.knownPeers.Broadcast(data) {
		s.evHandler("state: NetBroadcast: peer[%s]: WARNING: %s", p, err)
	}

	return nil
}

// NetBroadcastLatestBlock sends the latest block to every connected peer.
func (s *State) NetBroadcastLatestBlock() error {
	latest := s.RetrieveLatestBlock()

	if err := s.NetBroadcast(message.ReceiveLatestBlock{Block: latest}); err != nil {
		return fmt.Errorf("broadcast latest block[%s]: %w", latest, err)
	}

	return nil
}

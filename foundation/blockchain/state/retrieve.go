package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveRules returns the consensus rules the node runs with.
func (s *State) RetrieveRules() database.Rules {
	return s.rules
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain[len(s.chain)-1]
}

// RetrieveChain returns a copy of the whole chain.
func (s *State) RetrieveChain() []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := make([]database.Block, len(s.chain))
	copy(chain, s.chain)

	return chain
}

// RetrieveChainLength returns the number of blocks including genesis.
func (s *State) RetrieveChainLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chain)
}

// RetrieveKnownPeers retrieves a listing of the connected peers.
func (s *State) RetrieveKnownPeers() []peer.Info {
	return s.knownPeers.Copy()
}

// RetrievePeerCount returns the number of connected peers.
func (s *State) RetrievePeerCount() int {
	return s.knownPeers.Len()
}

// Package state is the core API for the blockchain and implements all the
// business rules and processing. It owns the canonical chain and the set of
// live peer connections.
package state

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Rules      database.Rules
	Host       string
	KnownPeers *peer.PeerSet
	EvHandler  EventHandler
}

// State manages the blockchain held in memory.
type State struct {
	rules     database.Rules
	host      string
	evHandler EventHandler

	mu    sync.RWMutex
	chain []database.Block

	knownPeers *peer.PeerSet

	Worker Worker
}

// New constructs a new blockchain holding only the genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		rules:      cfg.Rules,
		host:       cfg.Host,
		evHandler:  ev,
		chain:      []database.Block{database.Genesis()},
		knownPeers: knownPeers,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// signalCancelMining tells the worker the chain tip moved so any mining
// against the old tip is wasted work.
func (s *State) signalCancelMining() {
	if s.Worker != nil {
		s.Worker.SignalCancelMining()
	}
}

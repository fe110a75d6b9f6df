package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// MineNewBlock performs the POW against the current latest block and
// appends the result to the chain. This can be cancelled.
func (s *State) MineNewBlock(ctx context.Context, data string) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: perform POW")

	block, err := s.rules.POW(ctx, s.RetrieveLatestBlock(), data, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.addBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// AddBlock takes a block received from a peer, validates it against the
// latest block and if that passes, appends it to the chain.
func (s *State) AddBlock(block database.Block) error {
	s.evHandler("state: AddBlock: started: blk[%s]", block)
	defer s.evHandler("state: AddBlock: completed")

	if err := s.addBlock(block); err != nil {
		return err
	}

	s.signalCancelMining()

	return nil
}

// ReplaceChain swaps the local chain for the candidate when the candidate is
// a valid chain and strictly longer than the local one. Otherwise the local
// chain is left untouched and a validation error is returned.
func (s *State) ReplaceChain(candidate []database.Block) error {
	s.evHandler("state: ReplaceChain: started: len[%d]", len(candidate))
	defer s.evHandler("state: ReplaceChain: completed")

	if err := s.rules.ValidateChain(candidate); err != nil {
		return err
	}

	chain := make([]database.Block, len(candidate))
	copy(chain, candidate)

	if err := s.swapChain(chain); err != nil {
		return err
	}

	s.evHandler("state: ReplaceChain: chain replaced: len[%d]: latest[%s]", len(chain), chain[len(chain)-1])

	s.signalCancelMining()

	return nil
}

// =============================================================================

// swapChain replaces the chain if the new one is longer. The length check
// and the swap happen under the same lock.
func (s *State) swapChain(chain []database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chain) <= len(s.chain) {
		err := fmt.Errorf("%w: got %d, have %d", database.ErrChainNotLonger, len(chain), len(s.chain))
		return database.NewValidationError(err, chain[len(chain)-1])
	}

	s.chain = chain

	return nil
}

// addBlock validates and appends the block while holding the lock so the
// latest block can't change between the two.
func (s *State) addBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rules.ValidateBlock(block, s.chain[len(s.chain)-1]); err != nil {
		return err
	}

	s.chain = append(s.chain, block)

	return nil
}

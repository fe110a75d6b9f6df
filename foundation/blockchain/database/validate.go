package database

import "fmt"

// ValidateBlock checks that next can be appended directly after prev. The
// checks run in order and the first failure is returned.
func (r Rules) ValidateBlock(next Block, prev Block) error {
	if prev.Index+1 != next.Index {
		return NewValidationError(fmt.Errorf("%w: got %d, exp %d", ErrInvalidIndex, next.Index, prev.Index+1), next)
	}

	if prev.Hash != next.PreviousHash {
		return NewValidationError(fmt.Errorf("%w: got %s, exp %s", ErrInvalidPreviousHash, next.PreviousHash, prev.Hash), next)
	}

	hash := r.Hash(next)
	if hash != next.Hash {
		return NewValidationError(fmt.Errorf("%w: got %s, exp %s", ErrInvalidHash, next.Hash, hash), next)
	}

	if !r.IsHashSolved(hash) {
		return NewValidationError(fmt.Errorf("%w: hash %s, difficulty %d", ErrHashNotSolved, hash, r.Difficulty), next)
	}

	return nil
}

// ValidateChain checks the chain starts with the genesis block and that every
// block is a valid successor of the one before it.
func (r Rules) ValidateChain(chain []Block) error {
	if len(chain) == 0 {
		return NewValidationError(fmt.Errorf("%w: empty chain", ErrInvalidGenesis), Block{})
	}

	if !IsGenesis(chain[0]) {
		return NewValidationError(ErrInvalidGenesis, chain[0])
	}

	for i := 1; i < len(chain); i++ {
		if err := r.ValidateBlock(chain[i], chain[i-1]); err != nil {
			return err
		}
	}

	return nil
}

package database

import (
	"errors"
	"fmt"
)

// Set of reasons a block or chain can be rejected.
var (
	ErrInvalidIndex        = errors.New("block index is not the next index")
	ErrInvalidPreviousHash = errors.New("previous hash does not match the parent block")
	ErrInvalidHash         = errors.New("block hash does not match the block contents")
	ErrHashNotSolved       = errors.New("block hash does not satisfy the difficulty")
	ErrInvalidGenesis      = errors.New("chain does not start with the genesis block")
	ErrChainNotLonger      = errors.New("chain is not longer than the current chain")
)

// ValidationError is returned when a block or chain fails the structural,
// hash, difficulty or linkage checks. It carries the offending block.
type ValidationError struct {
	Err   error
	Block Block
}

// NewValidationError constructs a validation error for the specified block.
func NewValidationError(err error, block Block) error {
	return &ValidationError{
		Err:   err,
		Block: block,
	}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("invalid block[%d]: %s", ve.Block.Index, ve.Err)
}

// Unwrap provides access to the reason for errors.Is.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Package database provides the block value, the genesis block and the
// consensus rules used to hash, mine and validate blocks and chains.
package database

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block represents a single entry in the ledger. A block is never modified
// once it has been mined, it is only copied.
type Block struct {
	Index        uint64 `json:"index"`        // Position of the block in the chain, genesis is 0.
	PreviousHash string `json:"previousHash"` // Hash of the parent block, "0" for genesis.
	Timestamp    int64  `json:"timestamp"`    // Milliseconds since epoch when the block was mined.
	Data         string `json:"data"`         // Opaque payload recorded by the ledger.
	Hash         string `json:"hash"`         // Hex encoded SHA-256 of the other fields.
	Nonce        uint64 `json:"nonce"`        // Value identified to solve the hash solution.
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Index, b.Hash)
}

// =============================================================================

// HashMode identifies how block fields are serialized before being hashed.
type HashMode string

// Set of hash modes a node can run with.
const (
	// HashPrefixed writes every field as <length>:<text> so two different
	// field splits can never produce the same hash input.
	HashPrefixed HashMode = "prefixed"

	// HashLegacy concatenates the fields with no separator. It exists to
	// interoperate with nodes that still hash this way.
	HashLegacy HashMode = "legacy"
)

// ParseHashMode converts the string into a HashMode.
func ParseHashMode(s string) (HashMode, error) {
	switch HashMode(s) {
	case HashPrefixed, HashLegacy:
		return HashMode(s), nil
	}

	return "", fmt.Errorf("unknown hash mode %q", s)
}

// =============================================================================

// Rules holds the process wide consensus settings used to hash, mine and
// validate blocks. The difficulty is never retargeted.
type Rules struct {
	Difficulty uint
	HashMode   HashMode
}

// DefaultDifficulty is the number of leading zeros required by default.
const DefaultDifficulty = 3

// NewRules constructs the consensus rules for a node.
func NewRules(difficulty uint, mode HashMode) (Rules, error) {
	if difficulty > sha256.Size*2 {
		return Rules{}, fmt.Errorf("difficulty %d is larger than the hash length", difficulty)
	}

	if _, err := ParseHashMode(string(mode)); err != nil {
		return Rules{}, err
	}

	rules := Rules{
		Difficulty: difficulty,
		HashMode:   mode,
	}

	return rules, nil
}

// Hash computes the hash for the block from its index, previous hash,
// timestamp, data and nonce. The block's own Hash field is ignored.
func (r Rules) Hash(b Block) string {
	fields := [...]string{
		strconv.FormatUint(b.Index, 10),
		b.PreviousHash,
		strconv.FormatInt(b.Timestamp, 10),
		b.Data,
		strconv.FormatUint(b.Nonce, 10),
	}

	h := sha256.New()
	for _, field := range fields {
		if r.HashMode != HashLegacy {
			h.Write([]byte(strconv.Itoa(len(field))))
			h.Write([]byte{':'})
		}
		h.Write([]byte(field))
	}

	return common.Bytes2Hex(h.Sum(nil))
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func (r Rules) IsHashSolved(hash string) bool {
	var zeros uint
	for i := 0; i < len(hash) && hash[i] == '0'; i++ {
		zeros++
	}

	return zeros >= r.Difficulty
}

// POW constructs the block that follows prevBlock and performs the work to
// find a nonce that solves the cryptographic POW puzzle. The timestamp is
// refreshed on every attempt. The search stops when the context is cancelled.
func (r Rules) POW(ctx context.Context, prevBlock Block, data string, ev func(v string, args ...any)) (Block, error) {
	ev("database: POW: MINING: started: prevBlk[%s]", prevBlock)
	defer ev("database: POW: MINING: completed")

	nb := Block{
		Index:        prevBlock.Index + 1,
		PreviousHash: prevBlock.Hash,
		Data:         data,
	}

	var attempts uint64
	for nb.Nonce = 0; ; nb.Nonce++ {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled because another node found a solution.
		if err := ctx.Err(); err != nil {
			ev("database: POW: MINING: CANCELLED")
			return Block{}, err
		}

		nb.Timestamp = time.Now().UnixMilli()
		hash := r.Hash(nb)
		if !r.IsHashSolved(hash) {
			continue
		}

		nb.Hash = hash

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", prevBlock, nb, attempts)

		return nb, nil
	}
}

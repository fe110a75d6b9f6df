package database

// Genesis returns the hard coded first block of every valid chain. A chain
// is only accepted when its first block is exactly equal to this value. The
// hash is a fixed literal shared with every node on the network, it is never
// recomputed or checked against the difficulty.
func Genesis() Block {
	return Block{
		Index:        0,
		PreviousHash: "0",
		Timestamp:    1508270000000,
		Data:         "first block",
		Hash:         "θ00dc75a315c77a1f9c98fb6247d03dd18ac52632d7dc6a9920261d8109b37cf",
		Nonce:        604,
	}
}

// IsGenesis reports if the block is the genesis block.
func IsGenesis(b Block) bool {
	return b == Genesis()
}

// Package message defines the set of messages exchanged between peers and
// the JSON codec used to put them on the wire.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Type is the integer tag identifying a message on the wire.
type Type int

// Set of message tags understood by a node.
const (
	TypeRequestLatestBlock Type = 0
	TypeReceiveLatestBlock Type = 1
	TypeRequestChain       Type = 2
	TypeReceiveChain       Type = 3
	TypeHandshake          Type = 4
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case TypeRequestLatestBlock:
		return "RequestLatestBlock"
	case TypeReceiveLatestBlock:
		return "ReceiveLatestBlock"
	case TypeRequestChain:
		return "RequestChain"
	case TypeReceiveChain:
		return "ReceiveChain"
	case TypeHandshake:
		return "Handshake"
	}

	return fmt.Sprintf("Unknown(%d)", int(t))
}

// =============================================================================

// Message is implemented only by the message types in this package so a type
// switch over them can be exhaustive.
type Message interface {
	Type() Type
	sealed()
}

// RequestLatestBlock asks the peer for its latest block.
type RequestLatestBlock struct{}

// ReceiveLatestBlock carries the sender's latest block.
type ReceiveLatestBlock struct {
	Block database.Block
}

// RequestChain asks the peer for its whole chain.
type RequestChain struct{}

// ReceiveChain carries the sender's whole chain.
type ReceiveChain struct {
	Chain []database.Block
}

// Handshake advertises the port the sender accepts peer connections on.
type Handshake struct {
	Port int `json:"port"`
}

func (RequestLatestBlock) Type() Type { return TypeRequestLatestBlock }
func (ReceiveLatestBlock) Type() Type { return TypeReceiveLatestBlock }
func (RequestChain) Type() Type       { return TypeRequestChain }
func (ReceiveChain) Type() Type       { return TypeReceiveChain }
func (Handshake) Type() Type          { return TypeHandshake }

func (RequestLatestBlock) sealed() {}
func (ReceiveLatestBlock) sealed() {}
func (RequestChain) sealed()       {}
func (ReceiveChain) sealed()       {}
func (Handshake) sealed()          {}

// =============================================================================

// envelope is the wire representation of every message.
type envelope struct {
	Type *Type           `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals the message into its JSON envelope.
func Encode(msg Message) ([]byte, error) {
	var data any
	switch m := msg.(type) {
	case RequestLatestBlock, RequestChain:
	case ReceiveLatestBlock:
		data = m.Block
	case ReceiveChain:
		chain := m.Chain
		if chain == nil {
			chain = []database.Block{}
		}
		data = chain
	case Handshake:
		data = m
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}

	typ := msg.Type()
	env := envelope{Type: &typ}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", typ, err)
		}
		env.Data = raw
	}

	return json.Marshal(env)
}

// Decode unmarshals a single JSON envelope into a message. Malformed input
// returns a ParseError and an unknown tag returns a ProtocolError.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ParseError{Err: err, Raw: raw}
	}

	if env.Type == nil {
		return nil, &ParseError{Err: errors.New("missing message type"), Raw: raw}
	}

	switch *env.Type {
	case TypeRequestLatestBlock:
		return RequestLatestBlock{}, nil

	case TypeRequestChain:
		return RequestChain{}, nil

	case TypeReceiveLatestBlock:
		var block database.Block
		if err := decodeData(env, &block); err != nil {
			return nil, &ParseError{Err: err, Raw: raw}
		}
		return ReceiveLatestBlock{Block: block}, nil

	case TypeReceiveChain:
		var chain []database.Block
		if err := decodeData(env, &chain); err != nil {
			return nil, &ParseError{Err: err, Raw: raw}
		}
		return ReceiveChain{Chain: chain}, nil

	case TypeHandshake:
		var hs Handshake
		if err := decodeData(env, &hs); err != nil {
			return nil, &ParseError{Err: err, Raw: raw}
		}
		return hs, nil
	}

	return nil, &ProtocolError{Type: *env.Type}
}

// decodeData unmarshals the data field of the envelope, which is required
// for every message that carries a payload.
func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: missing data", *env.Type)
	}

	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", *env.Type, err)
	}

	return nil
}

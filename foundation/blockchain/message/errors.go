package message

import (
	"errors"
	"fmt"
)

// ParseError is returned when bytes can't be decoded into a message.
type ParseError struct {
	Err error
	Raw []byte
}

// Error implements the error interface.
func (pe *ParseError) Error() string {
	return fmt.Sprintf("parse message: %s", pe.Err)
}

// Unwrap provides access to the underlying decode error.
func (pe *ParseError) Unwrap() error {
	return pe.Err
}

// IsParseError checks if an error of type ParseError exists.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ProtocolError is returned when a message carries a tag this node
// doesn't understand.
type ProtocolError struct {
	Type Type
}

// Error implements the error interface.
func (pe *ProtocolError) Error() string {
	return fmt.Sprintf("unrecognized message type %d", int(pe.Type))
}

// IsProtocolError checks if an error of type ProtocolError exists.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

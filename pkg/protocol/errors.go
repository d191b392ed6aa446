package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader indicates the text doesn't start with the frame header.
	ErrInvalidHeader = errors.New("invalid header")
)

// DecodeError describes why a frame text can't be decoded.
type DecodeError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ErrorFrame builds the Err frame answering a frame that failed to decode.
func ErrorFrame(err error) Frame {
	return ErrFrame(0, 0, err.Error())
}

package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a fixed-size field or a declared string
	// length runs past the end of the input.
	ErrTruncated = errors.New("truncated input")

	// ErrUnexpectedEnd is returned when the input ends exactly where another
	// optional field was expected.
	ErrUnexpectedEnd = errors.New("unexpected end of input")

	// ErrInvalidString is returned when string bytes are not valid UTF-8.
	ErrInvalidString = errors.New("invalid UTF-8 string")
)

// DecodeError describes where decoding failed.
type DecodeError struct {
	Field  string // field being decoded, e.g. "name" or "keywords[3]"
	Offset int    // byte offset of the field within the input
	Need   int    // bytes required (0 when not applicable)
	Have   int    // bytes remaining at Offset
	Err    error  // one of the package sentinels
}

func (e *DecodeError) Error() string {
	if e.Need > 0 {
		return fmt.Sprintf("decode %s at offset %d: %v (need %d bytes, have %d)", e.Field, e.Offset, e.Err, e.Need, e.Have)
	}
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

package encoding

import "github.com/pkg/errors"

// Sentinel decode failures, matching the error taxonomy of spec.md §7.
// Callers use errors.Is against these; wrapping (via github.com/pkg/errors)
// preserves the offending offset/code in the message while keeping the
// sentinel matchable.
var (
	ErrInvalidFormatCode      = errors.New("encoding: invalid format code")
	ErrUnexpectedEOF          = errors.New("encoding: unexpected end of buffer")
	ErrUTF8                   = errors.New("encoding: invalid utf-8 in string")
	ErrOddMapLength           = errors.New("encoding: map has odd element count")
	ErrDuplicateMapKey        = errors.New("encoding: duplicate map key")
	ErrDescribedBodyNonPrim   = errors.New("encoding: described body did not decode to a primitive")
	ErrMaxDepthExceeded       = errors.New("encoding: constructor nesting too deep")
	ErrArrayElementMismatch   = errors.New("encoding: array element did not match declared element code")
)

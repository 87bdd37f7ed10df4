package arena

import (
	stderrors "errors"
)

var (
	// ErrReadLimit is returned when a bounded arena's byte budget would be
	// exceeded by a read.
	ErrReadLimit = stderrors.New("read limit exceeded")
	// ErrPointerLevel is returned when a bounded arena's pointer depth budget
	// is exhausted, including by cyclic pointer graphs.
	ErrPointerLevel = stderrors.New("pointer depth limit exceeded")
	// ErrOutOfBounds is returned when a location or geometry would reach past
	// a segment's valid bytes. It applies under every limit policy.
	ErrOutOfBounds = stderrors.New("read out of segment bounds")
	// ErrMalformedPointer is returned for pointers that cannot resolve to a
	// valid object.
	ErrMalformedPointer = stderrors.New("malformed pointer")

	// ErrUnknownSegment is returned for far pointers naming a segment the
	// message does not have.
	ErrUnknownSegment = &malformed{"unknown segment"}
	// ErrKindMismatch is returned when a pointer addresses a different kind
	// of object than the caller decodes it as.
	ErrKindMismatch = &malformed{"pointer kind does not match expected object"}
)

// malformed errors are refinements of ErrMalformedPointer.
type malformed struct {
	msg string
}

func (m *malformed) Error() string { return m.msg }

func (m *malformed) Is(target error) bool { return target == ErrMalformedPointer }

// IsLimit reports whether err stems from budget exhaustion rather than from
// malformed input.
func IsLimit(err error) bool {
	return stderrors.Is(err, ErrReadLimit) || stderrors.Is(err, ErrPointerLevel)
}

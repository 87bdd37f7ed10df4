package arena

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/wire"
)

// Segment is one fixed-capacity buffer of a message. Bytes at or beyond End
// are never read.
type Segment struct {
	ID  uint32
	Raw []byte
	End int
}

// NewSegment wraps raw as segment id whose first end bytes are valid.
func NewSegment(id uint32, raw []byte, end int) (*Segment, error) {
	if end < 0 || end > len(raw) {
		return nil, errors.Wrapf(ErrOutOfBounds, "segment %d: end %d beyond capacity %d", id, end, len(raw))
	}
	if end%wire.WordSize != 0 {
		return nil, errors.Errorf("segment %d: end %d is not word aligned", id, end)
	}
	return &Segment{ID: id, Raw: raw, End: end}, nil
}

// InBounds reports whether [begin, begin+length) lies within the valid bytes.
func (s *Segment) InBounds(begin, length int) bool {
	return begin >= 0 && length >= 0 && begin <= s.End && length <= s.End-begin
}

// Bytes returns the valid bytes of the segment.
func (s *Segment) Bytes() []byte {
	return s.Raw[:s.End]
}

func (s *Segment) word(position int) (lo, hi uint32) {
	return wire.ReadWord(s.Raw[position:])
}

func (s *Segment) checkRange(begin, length int) error {
	if !s.InBounds(begin, length) {
		return errors.Wrapf(ErrOutOfBounds, "segment %d: [%d, %d+%d) past end %d", s.ID, begin, begin, length, s.End)
	}
	return nil
}

// Location addresses a byte position within a segment.
type Location struct {
	Segment  *Segment
	Position int
}

// Root returns the location of a message's root pointer.
func Root(segments []*Segment) Location {
	if len(segments) == 0 {
		return Location{}
	}
	return Location{Segment: segments[0], Position: 0}
}

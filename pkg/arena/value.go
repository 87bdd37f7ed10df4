package arena

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/wire"
)

// StructValue is a decoded struct with bounds-checked field access. Data
// reads past the exposed data section yield zero, so readers built against a
// larger struct see defaults for fields an older writer never set.
type StructValue struct {
	arena   *Arena
	segment *Segment
	level   int
	Layout  StructLayout
}

// Struct decodes the struct addressed by p with its wire geometry.
func (a *Arena) Struct(p *Pointer) (*StructValue, error) {
	layout, err := a.GenericStructLayout(p)
	if err != nil {
		return nil, err
	}
	return &StructValue{arena: a, segment: p.Object.Segment, level: p.Level, Layout: layout}, nil
}

// SpecificStruct decodes the struct addressed by p reconciled against the
// expected shape.
func (a *Arena) SpecificStruct(p *Pointer, expected Bytes) (*StructValue, error) {
	layout, err := a.SpecificStructLayout(p, expected)
	if err != nil {
		return nil, err
	}
	return &StructValue{arena: a, segment: p.Object.Segment, level: p.Level, Layout: layout}, nil
}

func (s *StructValue) Segment() *Segment { return s.segment }

// Level is the nesting level the struct was reached at.
func (s *StructValue) Level() int { return s.level }

// Data returns the exposed data section.
func (s *StructValue) Data() []byte {
	return s.segment.Raw[s.Layout.DataSection : s.Layout.DataSection+s.Layout.Bytes.Data]
}

func (s *StructValue) field(offset, width int) []byte {
	if offset < 0 || offset+width > s.Layout.Bytes.Data {
		return nil
	}
	b := s.Data()
	return b[offset : offset+width]
}

func (s *StructValue) Uint8(offset int) uint8 {
	if b := s.field(offset, 1); b != nil {
		return b[0]
	}
	return 0
}

func (s *StructValue) Uint16(offset int) uint16 {
	if b := s.field(offset, 2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (s *StructValue) Uint32(offset int) uint32 {
	if b := s.field(offset, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (s *StructValue) Uint64(offset int) uint64 {
	if b := s.field(offset, 8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Bool reads the bit at bit offset.
func (s *StructValue) Bool(bit int) bool {
	if bit < 0 {
		return false
	}
	return s.Uint8(bit/8)&(1<<(bit%8)) != 0
}

// PointerCount is the number of exposed pointer slots.
func (s *StructValue) PointerCount() int {
	return s.Layout.Bytes.Pointers / wire.WordSize
}

// Field follows pointer slot i. Slots past the exposed pointer section read
// as null.
func (s *StructValue) Field(i int) (*Pointer, error) {
	if i < 0 || i >= s.PointerCount() {
		return nil, nil
	}
	return s.arena.Follow(Location{Segment: s.segment, Position: s.Layout.PointersSection + i*wire.WordSize}, s.level)
}

// StructField decodes the struct in pointer slot i, or nil if it is null.
func (s *StructValue) StructField(i int) (*StructValue, error) {
	p, err := s.Field(i)
	if err != nil || p == nil {
		return nil, err
	}
	return s.arena.Struct(p)
}

// ListField decodes the non-bool list in pointer slot i. A null slot yields a
// zero layout.
func (s *StructValue) ListField(i int) (ListLayout, *Segment, error) {
	p, err := s.Field(i)
	if err != nil || p == nil {
		return ListLayout{}, nil, err
	}
	l, err := s.arena.GenericNonboolListLayout(p)
	if err != nil {
		return ListLayout{}, nil, err
	}
	return l, p.Object.Segment, nil
}

// DataField returns the blob in pointer slot i.
func (s *StructValue) DataField(i int) ([]byte, error) {
	p, err := s.Field(i)
	if err != nil || p == nil {
		return nil, err
	}
	l, err := s.arena.BlobLayout(p)
	if err != nil {
		return nil, err
	}
	return p.Object.Segment.Raw[l.Begin : l.Begin+l.Length], nil
}

// TextField returns the text in pointer slot i without its NUL terminator.
func (s *StructValue) TextField(i int) (string, error) {
	b, err := s.DataField(i)
	if err != nil || len(b) == 0 {
		return "", err
	}
	if b[len(b)-1] != 0 {
		return "", errors.Wrap(ErrMalformedPointer, "text is not NUL terminated")
	}
	return string(b[:len(b)-1]), nil
}

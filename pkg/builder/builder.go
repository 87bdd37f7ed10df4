// Package builder is a small write-side arena: it allocates word-aligned
// regions across growable segments and writes pointers between them. It is
// the destination of deep copies and the way fixtures are constructed.
package builder

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/wire"
)

// MaxSegmentSize is the largest segment a far pointer can address.
const MaxSegmentSize = (1<<29 - 1) * wire.WordSize

var ErrTooLarge = errors.New("allocation exceeds maximum segment size")

type Builder struct {
	segments []*arena.Segment
	next     int
}

// Fresh returns a builder whose first segment holds size bytes. Later
// segments double in size until they reach MaxSegmentSize.
func Fresh(size int) *Builder {
	size = max(wire.RoundUp(size), wire.WordSize)
	b := &Builder{next: size}
	b.grow(size)
	return b
}

func (b *Builder) grow(size int) *arena.Segment {
	seg := &arena.Segment{ID: uint32(len(b.segments)), Raw: make([]byte, size)}
	b.segments = append(b.segments, seg)
	return seg
}

// Allocate returns a zero-filled region of n bytes rounded up to a word.
// It fills the newest segment first and opens a new one when it is full.
func (b *Builder) Allocate(n int) (arena.Location, error) {
	n = wire.RoundUp(n)
	if n < 0 || n > MaxSegmentSize {
		return arena.Location{}, errors.Wrapf(ErrTooLarge, "allocate %d bytes", n)
	}
	seg := b.segments[len(b.segments)-1]
	if len(seg.Raw)-seg.End < n {
		b.next = min(max(b.next*2, n), MaxSegmentSize)
		seg = b.grow(b.next)
	}
	loc := arena.Location{Segment: seg, Position: seg.End}
	seg.End += n
	return loc, nil
}

// Segments returns the builder's segments. Their End marks the bytes written
// so far.
func (b *Builder) Segments() []*arena.Segment {
	return b.segments
}

// Root allocates the root pointer word. It must be the first allocation.
func (b *Builder) Root() (arena.Location, error) {
	if seg := b.segments[0]; seg.End != 0 {
		return arena.Location{}, errors.New("root pointer must be the first allocation")
	}
	return b.Allocate(wire.WordSize)
}

// SetStruct allocates a struct and points the pointer word at `at` to it.
func (b *Builder) SetStruct(at arena.Location, dataWords, pointerWords int) (arena.Location, error) {
	tag := wire.StructTag(dataWords, pointerWords)
	size := (dataWords + pointerWords) * wire.WordSize
	if size == 0 {
		wire.PutWord(at.Segment.Raw[at.Position:], wire.StructPointer(-1), tag)
		return at, nil
	}
	obj, err := b.Allocate(size)
	if err != nil {
		return arena.Location{}, err
	}
	return obj, arena.WritePointer(b, at, obj, wire.Struct, tag)
}

// SetList allocates a list of count elements of a non-composite class.
func (b *Builder) SetList(at arena.Location, class wire.SizeClass, count int) (arena.Location, error) {
	var size int
	switch class {
	case wire.Bit:
		size = (count + 7) / 8
	case wire.Composite:
		return arena.Location{}, errors.New("composite lists are allocated with SetComposite")
	default:
		data, pointers, _ := class.ElementBytes()
		size = count * (data + pointers)
	}
	obj, err := b.Allocate(size)
	if err != nil {
		return arena.Location{}, err
	}
	return obj, arena.WritePointer(b, at, obj, wire.List, wire.ListTag(count, class))
}

// SetComposite allocates a composite list of count structs and returns the
// location of its first element.
func (b *Builder) SetComposite(at arena.Location, count, dataWords, pointerWords int) (arena.Location, error) {
	words := count * (dataWords + pointerWords)
	obj, err := b.Allocate((1 + words) * wire.WordSize)
	if err != nil {
		return arena.Location{}, err
	}
	wire.PutWord(obj.Segment.Raw[obj.Position:], wire.CompositeTag(count), wire.StructTag(dataWords, pointerWords))
	if err := arena.WritePointer(b, at, obj, wire.List, wire.ListTag(words, wire.Composite)); err != nil {
		return arena.Location{}, err
	}
	return arena.Location{Segment: obj.Segment, Position: obj.Position + wire.WordSize}, nil
}

// SetData stores a byte blob.
func (b *Builder) SetData(at arena.Location, data []byte) error {
	obj, err := b.SetList(at, wire.Byte, len(data))
	if err != nil {
		return err
	}
	copy(obj.Segment.Raw[obj.Position:], data)
	return nil
}

// SetText stores s as a NUL-terminated byte blob.
func (b *Builder) SetText(at arena.Location, s string) error {
	return b.SetData(at, append([]byte(s), 0))
}

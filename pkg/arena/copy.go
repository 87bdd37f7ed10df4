package arena

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/wire"
)

// Allocator is the write side of a copy: it hands out word-aligned,
// zero-filled regions of at least n bytes that the copy may fill.
type Allocator interface {
	Allocate(n int) (Location, error)
}

// StructCopy copies the struct described by layout, read from seg, into
// target and deep-copies every object its pointer section addresses into
// dst. The struct counts as the root of the copy: each nested pointer sits
// one level below the object holding it, so a pointer cycle fails with
// ErrPointerLevel once the chain passes the arena's depth bound. On failure
// dst may hold partially written objects.
func (a *Arena) StructCopy(layout StructLayout, seg *Segment, dst Allocator, target Location) error {
	return a.structCopy(layout, seg, 0, dst, target)
}

func (a *Arena) structCopy(layout StructLayout, seg *Segment, level int, dst Allocator, target Location) error {
	size := layout.Bytes.Data + layout.Bytes.Pointers
	if err := target.Segment.checkRange(target.Position, size); err != nil {
		return errors.Wrap(err, "struct copy destination")
	}
	return a.copyStruct(seg, layout.DataSection, layout.PointersSection, layout.Bytes, level, dst, target)
}

// NonboolListCopy copies the elements of a non-bool list into target, which
// must hold Length elements of the layout's exposed geometry. The inline tag
// of a composite list is not part of target.
func (a *Arena) NonboolListCopy(layout ListLayout, seg *Segment, dst Allocator, target Location) error {
	return a.nonboolListCopy(layout, seg, 0, dst, target)
}

func (a *Arena) nonboolListCopy(layout ListLayout, seg *Segment, level int, dst Allocator, target Location) error {
	elem := layout.Encoding.Bytes
	stride := elem.Data + elem.Pointers
	if err := target.Segment.checkRange(target.Position, layout.Length*stride); err != nil {
		return errors.Wrap(err, "list copy destination")
	}
	if elem.Pointers == 0 && stride == layout.Stride() {
		n := layout.Length * stride
		copy(target.Segment.Raw[target.Position:target.Position+n], seg.Raw[layout.Begin:layout.Begin+n])
		return nil
	}
	for i := 0; i < layout.Length; i++ {
		src := layout.Begin + i*layout.Stride()
		to := Location{Segment: target.Segment, Position: target.Position + i*stride}
		if err := a.copyStruct(seg, src, src+layout.Wire.Data, elem, level, dst, to); err != nil {
			return err
		}
	}
	return nil
}

// BoolListCopy copies the packed bits of a bool list into target.
func (a *Arena) BoolListCopy(layout BoolListLayout, seg *Segment, target Location) error {
	n := (layout.Length + 7) / 8
	if err := target.Segment.checkRange(target.Position, n); err != nil {
		return errors.Wrap(err, "bool list copy destination")
	}
	copy(target.Segment.Raw[target.Position:target.Position+n], seg.Raw[layout.Begin:layout.Begin+n])
	return nil
}

// PointerCopy resolves the pointer at src as a root slot and writes a
// pointer at target to a deep copy of its object allocated from dst. Like
// GetRoot, resolving the root itself charges no depth. A null pointer copies
// as null.
func (a *Arena) PointerCopy(src Location, dst Allocator, target Location) error {
	if err := target.Segment.checkRange(target.Position, wire.WordSize); err != nil {
		return errors.Wrap(err, "pointer copy destination")
	}
	p, err := a.Pointer(src)
	if err != nil {
		return err
	}
	return a.copyObject(p, dst, target)
}

// pointerCopy copies the pointer in a slot of an object at level.
func (a *Arena) pointerCopy(src Location, level int, dst Allocator, target Location) error {
	if err := target.Segment.checkRange(target.Position, wire.WordSize); err != nil {
		return errors.Wrap(err, "pointer copy destination")
	}
	p, err := a.Follow(src, level)
	if err != nil {
		return err
	}
	return a.copyObject(p, dst, target)
}

func (a *Arena) copyObject(p *Pointer, dst Allocator, target Location) error {
	if p == nil {
		wire.PutWord(target.Segment.Raw[target.Position:], 0, 0)
		return nil
	}
	switch p.Kind {
	case wire.Struct:
		return a.copyStructPointer(p, dst, target)
	case wire.List:
		if wire.ListClass(p.Hi) == wire.Bit {
			return a.copyBoolListPointer(p, dst, target)
		}
		return a.copyListPointer(p, dst, target)
	default:
		lo, hi := p.Object.Segment.word(p.Object.Position)
		wire.PutWord(target.Segment.Raw[target.Position:], lo, hi)
		return nil
	}
}

func (a *Arena) copyStruct(seg *Segment, data, pointers int, bytes Bytes, level int, dst Allocator, target Location) error {
	copy(target.Segment.Raw[target.Position:target.Position+bytes.Data], seg.Raw[data:data+bytes.Data])
	for i := 0; i < bytes.Pointers; i += wire.WordSize {
		src := Location{Segment: seg, Position: pointers + i}
		to := Location{Segment: target.Segment, Position: target.Position + bytes.Data + i}
		if err := a.pointerCopy(src, level, dst, to); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arena) copyStructPointer(p *Pointer, dst Allocator, target Location) error {
	layout, err := a.GenericStructLayout(p)
	if err != nil {
		return err
	}
	tag := wire.StructTag(layout.Bytes.Data/wire.WordSize, layout.Bytes.Pointers/wire.WordSize)
	size := layout.Bytes.Data + layout.Bytes.Pointers
	if size == 0 {
		// Empty structs point just before themselves so they never read as null.
		wire.PutWord(target.Segment.Raw[target.Position:], wire.StructPointer(-1), tag)
		return nil
	}
	obj, err := dst.Allocate(size)
	if err != nil {
		return err
	}
	if err := WritePointer(dst, target, obj, wire.Struct, tag); err != nil {
		return err
	}
	return a.structCopy(layout, p.Object.Segment, p.Level, dst, obj)
}

func (a *Arena) copyBoolListPointer(p *Pointer, dst Allocator, target Location) error {
	layout, err := a.BoolListLayout(p)
	if err != nil {
		return err
	}
	obj, err := dst.Allocate(wire.RoundUp((layout.Length + 7) / 8))
	if err != nil {
		return err
	}
	if err := WritePointer(dst, target, obj, wire.List, wire.ListTag(layout.Length, wire.Bit)); err != nil {
		return err
	}
	return a.BoolListCopy(layout, p.Object.Segment, obj)
}

func (a *Arena) copyListPointer(p *Pointer, dst Allocator, target Location) error {
	layout, err := a.GenericNonboolListLayout(p)
	if err != nil {
		return err
	}
	size := layout.Length * layout.Stride()
	if layout.Encoding.Flag != wire.Composite {
		obj, err := dst.Allocate(wire.RoundUp(size))
		if err != nil {
			return err
		}
		if err := WritePointer(dst, target, obj, wire.List, wire.ListTag(layout.Length, layout.Encoding.Flag)); err != nil {
			return err
		}
		return a.nonboolListCopy(layout, p.Object.Segment, p.Level, dst, obj)
	}

	obj, err := dst.Allocate(wire.WordSize + size)
	if err != nil {
		return err
	}
	wire.PutWord(obj.Segment.Raw[obj.Position:], wire.CompositeTag(layout.Length),
		wire.StructTag(layout.Wire.Data/wire.WordSize, layout.Wire.Pointers/wire.WordSize))
	if err := WritePointer(dst, target, obj, wire.List, wire.ListTag(size/wire.WordSize, wire.Composite)); err != nil {
		return err
	}
	elements := Location{Segment: obj.Segment, Position: obj.Position + wire.WordSize}
	return a.nonboolListCopy(layout, p.Object.Segment, p.Level, dst, elements)
}

// WritePointer stores at target a pointer of the given kind and tag to obj:
// a near pointer when both share a segment, otherwise a double-far pointer
// through a freshly allocated two-word landing pad.
func WritePointer(dst Allocator, target, obj Location, kind wire.Kind, hi uint32) error {
	if obj.Segment == target.Segment {
		lo := wire.NearPointer(kind, wire.NearOffset(target.Position, obj.Position))
		wire.PutWord(target.Segment.Raw[target.Position:], lo, hi)
		return nil
	}
	pad, err := dst.Allocate(2 * wire.WordSize)
	if err != nil {
		return err
	}
	flo, fhi := wire.FarPointer(obj.Position, obj.Segment.ID)
	wire.PutWord(pad.Segment.Raw[pad.Position:], flo, fhi)
	wire.PutWord(pad.Segment.Raw[pad.Position+wire.WordSize:], wire.NearPointer(kind, 0), hi)
	dlo, dhi := wire.DoubleFarPointer(pad.Position, pad.Segment.ID)
	wire.PutWord(target.Segment.Raw[target.Position:], dlo, dhi)
	return nil
}

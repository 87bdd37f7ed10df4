package arena

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rawbytedev/capread/pkg/wire"
)

// Pointer is a resolved wire pointer: its kind, its tag word and the location
// of the object it addresses. Far pointers never appear here; they are
// resolved through their landing pads first. For Other pointers Object is the
// location of the pointer word itself. Level counts the indirections, far
// hops included, taken from a root slot to reach the object.
type Pointer struct {
	Kind   wire.Kind
	Hi     uint32
	Object Location
	Level  int
}

// Pointer resolves the pointer word at loc as a root slot. It returns nil for
// a null pointer. Far pointers charge one level of depth for their hop.
func (a *Arena) Pointer(loc Location) (*Pointer, error) {
	return a.resolve(loc, 0, false)
}

// Follow resolves the pointer at loc as an indirection out of an object at
// level, charging the level below it for non-null pointers. Siblings share
// a level, so only nesting consumes depth.
func (a *Arena) Follow(loc Location, level int) (*Pointer, error) {
	return a.resolve(loc, level+1, true)
}

func (a *Arena) resolve(loc Location, level int, follow bool) (*Pointer, error) {
	if loc.Segment == nil {
		return nil, errors.Wrap(ErrOutOfBounds, "pointer outside of any segment")
	}
	if err := loc.Segment.checkRange(loc.Position, wire.WordSize); err != nil {
		return nil, err
	}
	lo, hi := loc.Segment.word(loc.Position)
	if lo == 0 && hi == 0 {
		return nil, nil
	}
	if follow {
		if err := a.limiter.ChargeLevel(level); err != nil {
			return nil, err
		}
	}

	var (
		p   *Pointer
		err error
	)
	switch wire.KindOf(lo) {
	case wire.Struct, wire.List:
		p, err = near(loc.Segment, loc.Position, lo, hi)
	case wire.Far:
		level++
		if err := a.limiter.ChargeLevel(level); err != nil {
			return nil, err
		}
		if wire.FarDouble(lo) {
			p, err = a.doubleFar(lo, hi)
		} else {
			p, err = a.far(lo, hi)
		}
	default:
		p = &Pointer{Kind: wire.Other, Hi: hi, Object: loc}
	}
	if err != nil {
		return nil, err
	}
	p.Level = level
	return p, nil
}

// near resolves a struct or list pointer relative to the word after it.
func near(seg *Segment, position int, lo, hi uint32) (*Pointer, error) {
	target := position + wire.WordSize + wire.Offset(lo)*wire.WordSize
	if target < 0 || target > seg.End {
		return nil, errors.Wrapf(ErrOutOfBounds, "segment %d: pointer at %d targets %d past end %d", seg.ID, position, target, seg.End)
	}
	return &Pointer{
		Kind:   wire.KindOf(lo),
		Hi:     hi,
		Object: Location{Segment: seg, Position: target},
	}, nil
}

func (a *Arena) far(lo, hi uint32) (*Pointer, error) {
	seg, err := a.Segment(wire.FarSegment(hi))
	if err != nil {
		return nil, err
	}
	pad := wire.FarPosition(lo)
	if err := seg.checkRange(pad, wire.WordSize); err != nil {
		return nil, err
	}
	plo, phi := seg.word(pad)
	switch {
	case plo == 0 && phi == 0:
		logrus.Debugf("Null far pointer landing pad in segment %d at %d", seg.ID, pad)
		return nil, errors.Wrapf(ErrMalformedPointer, "segment %d: null landing pad at %d", seg.ID, pad)
	case wire.KindOf(plo) == wire.Far:
		logrus.Debugf("Far pointer landing pad in segment %d at %d is itself far", seg.ID, pad)
		return nil, errors.Wrapf(ErrMalformedPointer, "segment %d: landing pad at %d is a far pointer", seg.ID, pad)
	case wire.KindOf(plo) == wire.Other:
		return &Pointer{Kind: wire.Other, Hi: phi, Object: Location{Segment: seg, Position: pad}}, nil
	}
	return near(seg, pad, plo, phi)
}

// doubleFar resolves a far pointer whose two-word pad holds a far pointer to
// the object followed by the object's tag.
func (a *Arena) doubleFar(lo, hi uint32) (*Pointer, error) {
	padSeg, err := a.Segment(wire.FarSegment(hi))
	if err != nil {
		return nil, err
	}
	pad := wire.FarPosition(lo)
	if err := padSeg.checkRange(pad, 2*wire.WordSize); err != nil {
		return nil, err
	}
	flo, fhi := padSeg.word(pad)
	if wire.KindOf(flo) != wire.Far || wire.FarDouble(flo) {
		return nil, errors.Wrapf(ErrMalformedPointer, "segment %d: double-far pad at %d has no far pointer", padSeg.ID, pad)
	}
	tlo, thi := padSeg.word(pad + wire.WordSize)
	if k := wire.KindOf(tlo); (k != wire.Struct && k != wire.List) || wire.Offset(tlo) != 0 {
		return nil, errors.Wrapf(ErrMalformedPointer, "segment %d: double-far pad at %d has bad tag", padSeg.ID, pad)
	}
	seg, err := a.Segment(wire.FarSegment(fhi))
	if err != nil {
		return nil, err
	}
	target := wire.FarPosition(flo)
	if target > seg.End {
		return nil, errors.Wrapf(ErrOutOfBounds, "segment %d: double-far target %d past end %d", seg.ID, target, seg.End)
	}
	return &Pointer{
		Kind:   wire.KindOf(tlo),
		Hi:     thi,
		Object: Location{Segment: seg, Position: target},
	}, nil
}

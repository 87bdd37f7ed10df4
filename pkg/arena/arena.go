// Package arena decodes pointers and object layouts from the segments of a
// message, charging every read against a Limiter.
//
// Nothing is validated up front. Each pointer is checked when it is
// followed: locations and geometries must stay inside their segment's valid
// bytes, byte reads consume the byte budget and pointer indirections
// consume the depth budget. The depth budget is also what stops cyclic
// pointer graphs; there is no visited set.
package arena

import (
	"github.com/pkg/errors"
)

// Arena is a message's segment collection together with its read budget.
type Arena struct {
	segments []*Segment
	limiter  Limiter
}

// New returns an arena over segments. Segment i must carry ID i.
func New(segments []*Segment, limiter Limiter) *Arena {
	if limiter == nil {
		limiter = Unlimited{}
	}
	return &Arena{segments: segments, limiter: limiter}
}

// Segment returns the segment with the given id.
func (a *Arena) Segment(id uint32) (*Segment, error) {
	if int64(id) >= int64(len(a.segments)) {
		return nil, errors.Wrapf(ErrUnknownSegment, "segment %d of %d", id, len(a.segments))
	}
	return a.segments[id], nil
}

func (a *Arena) Segments() []*Segment {
	return a.segments
}

func (a *Arena) Limiter() Limiter {
	return a.limiter
}

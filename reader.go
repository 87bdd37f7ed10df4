// Package capread reads segmented, pointer-based binary messages without an
// up-front validation pass. A Reader wraps a message's segments with a read
// budget; every pointer is checked as it is followed.
package capread

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/wire"
)

// Reader is the read side of one message.
type Reader struct {
	*arena.Arena
}

// New returns a reader over segments under the given limit policy.
func New(segments []*arena.Segment, limiter arena.Limiter) *Reader {
	return &Reader{Arena: arena.New(segments, limiter)}
}

// Limited returns a reader that fails once maxBytes have been read or
// maxLevel pointer indirections have been followed.
func Limited(segments []*arena.Segment, maxBytes, maxLevel int) *Reader {
	return New(segments, arena.NewLimited(maxBytes, maxLevel))
}

// Unlimited returns a reader for data that is already trusted.
func Unlimited(segments []*arena.Segment) *Reader {
	return New(segments, arena.Unlimited{})
}

// FromBuffers wraps raw segment buffers, each fully valid, as segments.
func FromBuffers(buffers [][]byte) ([]*arena.Segment, error) {
	segments := make([]*arena.Segment, len(buffers))
	for i, raw := range buffers {
		seg, err := arena.NewSegment(uint32(i), raw, len(raw))
		if err != nil {
			return nil, err
		}
		segments[i] = seg
	}
	return segments, nil
}

// GetRoot decodes the root struct. It returns nil for a message whose root
// pointer is null.
func (r *Reader) GetRoot() (*arena.StructValue, error) {
	segments := r.Segments()
	if len(segments) == 0 || !segments[0].InBounds(0, wire.WordSize) {
		return nil, errors.Wrap(arena.ErrOutOfBounds, "message has no root word")
	}
	p, err := r.Pointer(arena.Root(segments))
	if err != nil || p == nil {
		return nil, err
	}
	return r.Struct(p)
}

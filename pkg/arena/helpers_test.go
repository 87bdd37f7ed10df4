package arena_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/wire"
)

type word struct {
	lo, hi uint32
}

func segment(t testing.TB, id uint32, words ...word) *arena.Segment {
	t.Helper()
	raw := make([]byte, len(words)*wire.WordSize)
	for i, w := range words {
		wire.PutWord(raw[i*wire.WordSize:], w.lo, w.hi)
	}
	s, err := arena.NewSegment(id, raw, len(raw))
	require.NoError(t, err)
	return s
}

func at(s *arena.Segment, position int) arena.Location {
	return arena.Location{Segment: s, Position: position}
}

// node is a position-independent rendering of an object graph.
type node struct {
	Kind     string
	Data     []byte
	Children []*node
}

// dump renders everything reachable from the pointer at loc, a slot of an
// object at level.
func dump(t testing.TB, a *arena.Arena, loc arena.Location, level int) *node {
	t.Helper()
	p, err := a.Follow(loc, level)
	require.NoError(t, err)
	if p == nil {
		return nil
	}
	seg := p.Object.Segment
	switch p.Kind {
	case wire.Struct:
		l, err := a.GenericStructLayout(p)
		require.NoError(t, err)
		return &node{
			Kind:     fmt.Sprintf("struct %d/%d", l.Bytes.Data, l.Bytes.Pointers),
			Data:     seg.Raw[l.DataSection : l.DataSection+l.Bytes.Data],
			Children: dumpPointers(t, a, seg, l.PointersSection, l.Bytes.Pointers, p.Level),
		}
	case wire.List:
		if wire.ListClass(p.Hi) == wire.Bit {
			l, err := a.BoolListLayout(p)
			require.NoError(t, err)
			return &node{
				Kind: fmt.Sprintf("bits %d", l.Length),
				Data: seg.Raw[l.Begin : l.Begin+(l.Length+7)/8],
			}
		}
		l, err := a.GenericNonboolListLayout(p)
		require.NoError(t, err)
		n := &node{Kind: fmt.Sprintf("list %s %d", l.Encoding.Flag, l.Length)}
		for i := 0; i < l.Length; i++ {
			elem := l.Begin + i*l.Stride()
			n.Children = append(n.Children, &node{
				Kind:     "element",
				Data:     seg.Raw[elem : elem+l.Wire.Data],
				Children: dumpPointers(t, a, seg, elem+l.Wire.Data, l.Wire.Pointers, p.Level),
			})
		}
		return n
	default:
		return &node{Kind: fmt.Sprintf("capability %d", p.Hi)}
	}
}

func dumpPointers(t testing.TB, a *arena.Arena, seg *arena.Segment, begin, n, level int) []*node {
	var out []*node
	for off := 0; off < n; off += wire.WordSize {
		out = append(out, dump(t, a, at(seg, begin+off), level))
	}
	return out
}

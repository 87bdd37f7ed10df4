package capread

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/builder"
	"github.com/rawbytedev/capread/pkg/wire"
)

func copyRoot(r *Reader) ([]byte, error) {
	b := builder.Fresh(64)
	root, err := b.Root()
	if err != nil {
		return nil, err
	}
	if err := r.PointerCopy(arena.Root(r.Segments()), b, root); err != nil {
		return nil, err
	}
	return Serialize(b.Segments()), nil
}

func FuzzDeserializeCopy(f *testing.F) {
	f.Add(Serialize(message(f, 1024).Segments()))
	f.Add(Serialize(message(f, 8).Segments()))
	cycle := make([]byte, 16)
	wire.PutWord(cycle, wire.StructPointer(0), wire.StructTag(0, 1))
	wire.PutWord(cycle[8:], wire.StructPointer(-2), wire.StructTag(0, 1))
	f.Add(Serialize([]*arena.Segment{{Raw: cycle, End: 16}}))
	f.Fuzz(fuzzDeserializeCopy)
}

// Anything that survives a bounded copy copies again, unbounded, to the
// same bytes.
func fuzzDeserializeCopy(t *testing.T, data []byte) {
	r, err := Deserialize(data, Options{MaxBytes: 1 << 16, MaxDepth: 16})
	if err != nil {
		return
	}
	_, _ = r.GetRoot()

	r, err = Deserialize(data, Options{MaxBytes: 1 << 16, MaxDepth: 16})
	require.NoError(t, err)
	first, err := copyRoot(r)
	if err != nil {
		return
	}
	again, err := Deserialize(first, Options{})
	require.NoError(t, err)
	second, err := copyRoot(again)
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
}

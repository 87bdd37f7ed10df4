package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/wire"
)

func TestPointerNull(t *testing.T) {
	s := segment(t, 0, word{}, word{})
	a := arena.New([]*arena.Segment{s}, arena.NewLimited(0, 0))
	p, err := a.Pointer(at(s, 0))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = a.Follow(at(s, 8), 0)
	require.NoError(t, err, "null pointers cost no depth")
	assert.Nil(t, p)
}

func TestPointerLocationBounds(t *testing.T) {
	s := segment(t, 0, word{})
	a := arena.New([]*arena.Segment{s}, arena.Unlimited{})
	for _, loc := range []arena.Location{{}, at(s, 8), at(s, -8)} {
		_, err := a.Pointer(loc)
		assert.ErrorIs(t, err, arena.ErrOutOfBounds)
	}
}

func TestPointerNear(t *testing.T) {
	s := segment(t, 0,
		word{wire.StructPointer(1), wire.StructTag(1, 0)},
		word{},
		word{0xcafe, 0},
	)
	a := arena.New([]*arena.Segment{s}, arena.NewLimited(0, 0))
	p, err := a.Pointer(at(s, 0))
	require.NoError(t, err, "resolving without following is free")
	assert.Equal(t, &arena.Pointer{Kind: wire.Struct, Hi: wire.StructTag(1, 0), Object: at(s, 16)}, p)
}

func TestPointerNearOutOfBounds(t *testing.T) {
	tests := []struct {
		name string
		lo   uint32
	}{
		{"past end", wire.StructPointer(2)},
		{"before start", wire.StructPointer(-2)},
		{"list past end", wire.ListPointer(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := segment(t, 0, word{tt.lo, 0}, word{})
			a := arena.New([]*arena.Segment{s}, arena.Unlimited{})
			_, err := a.Pointer(at(s, 0))
			assert.ErrorIs(t, err, arena.ErrOutOfBounds)
		})
	}
}

func TestPointerTargetAtEnd(t *testing.T) {
	s := segment(t, 0, word{wire.StructPointer(0), 0})
	a := arena.New([]*arena.Segment{s}, arena.Unlimited{})
	p, err := a.Pointer(at(s, 0))
	require.NoError(t, err)
	l, err := a.GenericStructLayout(p)
	require.NoError(t, err, "an empty struct may sit at the segment end")
	assert.Equal(t, 8, l.End)
}

func TestFollowChargesLevel(t *testing.T) {
	s := segment(t, 0, word{wire.StructPointer(-1), 0})
	a := arena.New([]*arena.Segment{s}, arena.NewLimited(0, 1))
	for range 3 {
		p, err := a.Follow(at(s, 0), 0)
		require.NoError(t, err, "siblings share their parent's level")
		assert.Equal(t, 1, p.Level)
	}
	_, err := a.Follow(at(s, 0), 1)
	assert.ErrorIs(t, err, arena.ErrPointerLevel)
}

func TestFollowFarChargesHop(t *testing.T) {
	flo, fhi := wire.FarPointer(0, 1)
	s0 := segment(t, 0, word{flo, fhi})
	s1 := segment(t, 1, word{wire.StructPointer(-1), 0})
	segments := []*arena.Segment{s0, s1}

	p, err := arena.New(segments, arena.NewLimited(0, 2)).Follow(at(s0, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)

	_, err = arena.New(segments, arena.NewLimited(0, 1)).Follow(at(s0, 0), 0)
	assert.ErrorIs(t, err, arena.ErrPointerLevel)
}

func TestPointerOther(t *testing.T) {
	s := segment(t, 0, word{}, word{uint32(wire.Other), 9})
	a := arena.New([]*arena.Segment{s}, arena.Unlimited{})
	p, err := a.Pointer(at(s, 8))
	require.NoError(t, err)
	assert.Equal(t, &arena.Pointer{Kind: wire.Other, Hi: 9, Object: at(s, 8)}, p)
}

func TestPointerFar(t *testing.T) {
	flo, fhi := wire.FarPointer(8, 1)
	s0 := segment(t, 0, word{flo, fhi})
	s1 := segment(t, 1,
		word{},
		word{wire.StructPointer(0), wire.StructTag(1, 0)},
		word{42, 0},
	)
	segments := []*arena.Segment{s0, s1}

	a := arena.New(segments, arena.NewLimited(0, 1))
	p, err := a.Pointer(at(s0, 0))
	require.NoError(t, err)
	assert.Equal(t, &arena.Pointer{Kind: wire.Struct, Hi: wire.StructTag(1, 0), Object: at(s1, 16), Level: 1}, p)

	a = arena.New(segments, arena.NewLimited(0, 0))
	_, err = a.Pointer(at(s0, 0))
	assert.ErrorIs(t, err, arena.ErrPointerLevel, "a far hop costs one level")
}

func TestPointerFarToCapability(t *testing.T) {
	flo, fhi := wire.FarPointer(0, 1)
	s0 := segment(t, 0, word{flo, fhi})
	s1 := segment(t, 1, word{uint32(wire.Other), 4})
	a := arena.New([]*arena.Segment{s0, s1}, arena.Unlimited{})
	p, err := a.Pointer(at(s0, 0))
	require.NoError(t, err)
	assert.Equal(t, &arena.Pointer{Kind: wire.Other, Hi: 4, Object: at(s1, 0), Level: 1}, p)
}

func TestPointerFarMalformed(t *testing.T) {
	farTo := func(position int, id uint32) word {
		lo, hi := wire.FarPointer(position, id)
		return word{lo, hi}
	}
	tests := []struct {
		name string
		pad  []word
		far  word
		want error
	}{
		{"unknown segment", []word{{}}, farTo(0, 5), arena.ErrUnknownSegment},
		{"pad out of bounds", []word{{}}, farTo(8, 1), arena.ErrOutOfBounds},
		{"null pad", []word{{}}, farTo(0, 1), arena.ErrMalformedPointer},
		{"far pad", []word{farTo(0, 0)}, farTo(0, 1), arena.ErrMalformedPointer},
		{"pad target out of bounds", []word{{wire.StructPointer(3), 0}}, farTo(0, 1), arena.ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s0 := segment(t, 0, tt.far)
			s1 := segment(t, 1, tt.pad...)
			a := arena.New([]*arena.Segment{s0, s1}, arena.Unlimited{})
			_, err := a.Pointer(at(s0, 0))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPointerUnknownSegmentIsMalformed(t *testing.T) {
	lo, hi := wire.FarPointer(0, 7)
	s0 := segment(t, 0, word{lo, hi})
	a := arena.New([]*arena.Segment{s0}, arena.Unlimited{})
	_, err := a.Pointer(at(s0, 0))
	assert.ErrorIs(t, err, arena.ErrMalformedPointer)
}

func TestPointerDoubleFar(t *testing.T) {
	dlo, dhi := wire.DoubleFarPointer(0, 1)
	flo, fhi := wire.FarPointer(8, 2)
	s0 := segment(t, 0, word{dlo, dhi})
	s1 := segment(t, 1,
		word{flo, fhi},
		word{wire.ListPointer(0), wire.ListTag(4, wire.TwoBytes)},
	)
	s2 := segment(t, 2, word{}, word{0x00020001, 0x00040003})
	a := arena.New([]*arena.Segment{s0, s1, s2}, arena.NewLimited(64, 1))

	p, err := a.Pointer(at(s0, 0))
	require.NoError(t, err)
	assert.Equal(t, &arena.Pointer{Kind: wire.List, Hi: wire.ListTag(4, wire.TwoBytes), Object: at(s2, 8), Level: 1}, p)

	l, err := a.GenericNonboolListLayout(p)
	require.NoError(t, err)
	assert.Equal(t, 8, l.Begin)
	assert.Equal(t, 4, l.Length)
}

func TestPointerDoubleFarMalformed(t *testing.T) {
	flo, fhi := wire.FarPointer(0, 2)
	dflo, dfhi := wire.DoubleFarPointer(0, 2)
	tests := []struct {
		name string
		pad  []word
		want error
	}{
		{"short pad", []word{{flo, fhi}}, arena.ErrOutOfBounds},
		{"pad without far", []word{{wire.StructPointer(0), 0}, {wire.StructPointer(0), 0}}, arena.ErrMalformedPointer},
		{"pad with double far", []word{{dflo, dfhi}, {wire.StructPointer(0), 0}}, arena.ErrMalformedPointer},
		{"tag with offset", []word{{flo, fhi}, {wire.StructPointer(1), 0}}, arena.ErrMalformedPointer},
		{"capability tag", []word{{flo, fhi}, {uint32(wire.Other), 0}}, arena.ErrMalformedPointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := wire.DoubleFarPointer(0, 1)
			s0 := segment(t, 0, word{lo, hi})
			s1 := segment(t, 1, tt.pad...)
			s2 := segment(t, 2, word{})
			a := arena.New([]*arena.Segment{s0, s1, s2}, arena.Unlimited{})
			_, err := a.Pointer(at(s0, 0))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestArenaSegment(t *testing.T) {
	s := segment(t, 0, word{})
	a := arena.New([]*arena.Segment{s}, nil)
	got, err := a.Segment(0)
	require.NoError(t, err)
	assert.Same(t, s, got)
	_, err = a.Segment(1)
	assert.ErrorIs(t, err, arena.ErrUnknownSegment)
	assert.Equal(t, arena.Unlimited{}, a.Limiter())
}

func TestNewSegment(t *testing.T) {
	_, err := arena.NewSegment(0, make([]byte, 8), 16)
	assert.ErrorIs(t, err, arena.ErrOutOfBounds)
	_, err = arena.NewSegment(0, make([]byte, 8), 4)
	assert.Error(t, err)
	s, err := arena.NewSegment(3, make([]byte, 32), 16)
	require.NoError(t, err)
	assert.Len(t, s.Bytes(), 16)
	assert.True(t, s.InBounds(8, 8))
	assert.False(t, s.InBounds(8, 9))
	assert.False(t, s.InBounds(-1, 1))
}

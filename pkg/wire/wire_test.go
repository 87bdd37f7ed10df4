package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearPointerOffsets(t *testing.T) {
	for _, off := range []int{0, 1, -1, -2, 1<<29 - 1, -(1 << 29)} {
		lo := StructPointer(off)
		assert.Equal(t, Struct, KindOf(lo))
		assert.Equal(t, off, Offset(lo), "offset %d", off)

		lo = ListPointer(off)
		assert.Equal(t, List, KindOf(lo))
		assert.Equal(t, off, Offset(lo), "offset %d", off)
	}
}

func TestTags(t *testing.T) {
	hi := StructTag(3, 2)
	assert.Equal(t, 3, DataWords(hi))
	assert.Equal(t, 2, PointerWords(hi))
	assert.Equal(t, uint32(1<<16), StructTag(0, 1))

	hi = ListTag(5, EightBytes)
	assert.Equal(t, EightBytes, ListClass(hi))
	assert.Equal(t, 5, ListCount(hi))
	assert.Equal(t, uint32(1<<3|7), ListTag(1, Composite))
	assert.Equal(t, 1<<29-1, ListCount(0xffffffff))
}

func TestFarPointers(t *testing.T) {
	lo, hi := FarPointer(24, 7)
	assert.Equal(t, Far, KindOf(lo))
	assert.False(t, FarDouble(lo))
	assert.Equal(t, 24, FarPosition(lo))
	assert.Equal(t, uint32(7), FarSegment(hi))

	lo, _ = DoubleFarPointer(24, 7)
	assert.Equal(t, Far, KindOf(lo))
	assert.True(t, FarDouble(lo))
	assert.Equal(t, 24, FarPosition(lo))
}

func TestCompositeTagCarriesCount(t *testing.T) {
	lo := CompositeTag(12)
	assert.Equal(t, Struct, KindOf(lo))
	assert.Equal(t, 12, Offset(lo))
}

func TestWordRoundTrip(t *testing.T) {
	b := make([]byte, WordSize)
	PutWord(b, 0xdeadbeef, 0x01020304)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde, 0x04, 0x03, 0x02, 0x01}, b)
	lo, hi := ReadWord(b)
	assert.Equal(t, uint32(0xdeadbeef), lo)
	assert.Equal(t, uint32(0x01020304), hi)
}

func TestNearOffset(t *testing.T) {
	assert.Equal(t, 0, NearOffset(0, 8))
	assert.Equal(t, 2, NearOffset(8, 32))
	assert.Equal(t, -2, NearOffset(8, 0))
	assert.Equal(t, -1, NearOffset(16, 16))
}

func TestElementBytes(t *testing.T) {
	tests := []struct {
		class    SizeClass
		data     int
		pointers int
		ok       bool
	}{
		{Void, 0, 0, true},
		{Bit, 0, 0, false},
		{Byte, 1, 0, true},
		{TwoBytes, 2, 0, true},
		{FourBytes, 4, 0, true},
		{EightBytes, 8, 0, true},
		{Pointer, 0, 8, true},
		{Composite, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			data, pointers, ok := tt.class.ElementBytes()
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.data, data)
			assert.Equal(t, tt.pointers, pointers)
		})
	}
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, 0, RoundUp(0))
	assert.Equal(t, 8, RoundUp(1))
	assert.Equal(t, 8, RoundUp(8))
	assert.Equal(t, 16, RoundUp(9))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "far", Far.String())
	assert.Equal(t, "invalid", Kind(9).String())
	assert.Equal(t, "composite", Composite.String())
	assert.Equal(t, "invalid", SizeClass(8).String())
}

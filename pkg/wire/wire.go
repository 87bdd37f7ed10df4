package wire

import "encoding/binary"

// WordSize is the size in bytes of one word. Offsets and section sizes are
// expressed in words.
const WordSize = 8

// Kind is the 2-bit pointer discriminant stored in the low bits of a word.
type Kind uint8

const (
	Struct Kind = 0
	List   Kind = 1
	Far    Kind = 2
	Other  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Struct:
		return "struct"
	case List:
		return "list"
	case Far:
		return "far"
	case Other:
		return "other"
	default:
		return "invalid"
	}
}

// SizeClass is the 3-bit element size tag of a list pointer.
type SizeClass uint8

const (
	Void       SizeClass = 0
	Bit        SizeClass = 1
	Byte       SizeClass = 2
	TwoBytes   SizeClass = 3
	FourBytes  SizeClass = 4
	EightBytes SizeClass = 5
	Pointer    SizeClass = 6
	Composite  SizeClass = 7
)

func (c SizeClass) String() string {
	switch c {
	case Void:
		return "void"
	case Bit:
		return "bit"
	case Byte:
		return "byte"
	case TwoBytes:
		return "two-bytes"
	case FourBytes:
		return "four-bytes"
	case EightBytes:
		return "eight-bytes"
	case Pointer:
		return "pointer"
	case Composite:
		return "composite"
	default:
		return "invalid"
	}
}

// ElementBytes returns the per-element data and pointer byte widths of a
// fixed-width size class. Bit and composite lists have no fixed per-element
// byte geometry and report ok == false.
func (c SizeClass) ElementBytes() (data, pointers int, ok bool) {
	switch c {
	case Void:
		return 0, 0, true
	case Byte:
		return 1, 0, true
	case TwoBytes:
		return 2, 0, true
	case FourBytes:
		return 4, 0, true
	case EightBytes:
		return 8, 0, true
	case Pointer:
		return 0, WordSize, true
	default:
		return 0, 0, false
	}
}

// ReadWord splits the 8 bytes at b into the low and high 32-bit halves.
func ReadWord(b []byte) (lo, hi uint32) {
	return binary.LittleEndian.Uint32(b), binary.LittleEndian.Uint32(b[4:])
}

// PutWord stores lo and hi little-endian into the first 8 bytes of b.
func PutWord(b []byte, lo, hi uint32) {
	binary.LittleEndian.PutUint32(b, lo)
	binary.LittleEndian.PutUint32(b[4:], hi)
}

func KindOf(lo uint32) Kind {
	return Kind(lo & 0x03)
}

// Offset decodes the 30-bit signed word offset of a struct or list pointer.
func Offset(lo uint32) int {
	return int(int32(lo) >> 2)
}

// DataWords and PointerWords decode a struct tag.
func DataWords(hi uint32) int {
	return int(hi & 0xffff)
}

func PointerWords(hi uint32) int {
	return int(hi >> 16)
}

// ListClass and ListCount decode a list tag. For composite lists the count
// is the number of words following the inline tag word.
func ListClass(hi uint32) SizeClass {
	return SizeClass(hi & 0x07)
}

func ListCount(hi uint32) int {
	return int(hi >> 3)
}

// FarDouble reports whether a far pointer lands on a two-word pad.
func FarDouble(lo uint32) bool {
	return lo&0x04 != 0
}

// FarPosition is the byte position of a far pointer's landing pad.
func FarPosition(lo uint32) int {
	return int(lo>>3) * WordSize
}

func FarSegment(hi uint32) uint32 {
	return hi
}

// StructTag encodes a (data words, pointer words) pair.
func StructTag(dataWords, pointerWords int) uint32 {
	return uint32(pointerWords)<<16 | uint32(dataWords)&0xffff
}

// ListTag encodes an (element count, size class) pair.
func ListTag(count int, class SizeClass) uint32 {
	return uint32(count)<<3 | uint32(class)&0x07
}

// NearPointer returns the low word of a struct or list pointer with the given
// word offset.
func NearPointer(kind Kind, offset int) uint32 {
	return uint32(int32(offset)<<2) | uint32(kind)
}

func StructPointer(offset int) uint32 {
	return NearPointer(Struct, offset)
}

func ListPointer(offset int) uint32 {
	return NearPointer(List, offset)
}

// CompositeTag returns the low word of the inline tag preceding the
// elements of a composite list; its offset field carries the element count.
func CompositeTag(count int) uint32 {
	return StructPointer(count)
}

// FarPointer returns the low and high words of a far pointer whose landing
// pad sits at the word-aligned byte position in segment id.
func FarPointer(position int, id uint32) (lo, hi uint32) {
	return uint32(position/WordSize)<<3 | uint32(Far), id
}

func DoubleFarPointer(position int, id uint32) (lo, hi uint32) {
	lo, hi = FarPointer(position, id)
	return lo | 0x04, hi
}

// NearOffset computes the word offset for a pointer at from addressing an
// object at to, both in the same segment.
func NearOffset(from, to int) int {
	return (to - from - WordSize) / WordSize
}

// RoundUp rounds n bytes up to a whole number of words.
func RoundUp(n int) int {
	return (n + WordSize - 1) &^ (WordSize - 1)
}

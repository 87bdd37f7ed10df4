package common

import "encoding/binary"

// MaxVarintLen is the longest encoding AppendVarUint produces.
const MaxVarintLen = binary.MaxVarintLen64

// AppendVarUint appends varint-encoded x to dst using a small stack scratch.
func AppendVarUint(dst []byte, x uint64) []byte {
	var scratch [MaxVarintLen]byte
	i := 0
	for x >= 0x80 {
		scratch[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	scratch[i] = byte(x)
	i++
	return append(dst, scratch[:i]...)
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
// It returns 0 bytes consumed for a truncated or overlong varint.
func ReadVarUint(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == MaxVarintLen {
			return 0, 0
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}

// Uint32At reads a little-endian uint32 at off, reporting false when b is too
// short.
func Uint32At(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[off:]), true
}

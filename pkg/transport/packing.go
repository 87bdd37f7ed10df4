package transport

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/wire"
)

var (
	ErrPacked      = errors.New("malformed packed stream")
	ErrUnpackLimit = errors.New("unpacked stream exceeds limit")
)

// Unpack expands a packed stream. Every word is encoded as a tag byte whose
// bits mark the non-zero bytes that follow it. Tag 0x00 is followed by a
// count of further all-zero words, tag 0xff by a count of literal words.
// A limit above zero bounds the unpacked size, since zero runs expand up to
// 1024 times.
func Unpack(b []byte, limit int) ([]byte, error) {
	out := make([]byte, 0, len(b)*2)
	grow := func(n int) error {
		if limit > 0 && len(out)+n > limit {
			return errors.Wrapf(ErrUnpackLimit, "%d bytes", len(out)+n)
		}
		return nil
	}
	for i := 0; i < len(b); {
		tag := b[i]
		i++
		if err := grow(wire.WordSize); err != nil {
			return nil, err
		}
		var word [wire.WordSize]byte
		for bit := range word {
			if tag&(1<<bit) == 0 {
				continue
			}
			if i >= len(b) {
				return nil, errors.Wrap(ErrPacked, "word truncated")
			}
			word[bit] = b[i]
			i++
		}
		out = append(out, word[:]...)

		switch tag {
		case 0x00:
			if i >= len(b) {
				return nil, errors.Wrap(ErrPacked, "zero run count missing")
			}
			n := int(b[i]) * wire.WordSize
			i++
			if err := grow(n); err != nil {
				return nil, err
			}
			out = append(out, make([]byte, n)...)
		case 0xff:
			if i >= len(b) {
				return nil, errors.Wrap(ErrPacked, "literal run count missing")
			}
			n := int(b[i]) * wire.WordSize
			i++
			if n > len(b)-i {
				return nil, errors.Wrap(ErrPacked, "literal run truncated")
			}
			if err := grow(n); err != nil {
				return nil, err
			}
			out = append(out, b[i:i+n]...)
			i += n
		}
	}
	return out, nil
}

// Pack compresses word-aligned data for Unpack.
func Pack(b []byte) []byte {
	out := make([]byte, 0, len(b))
	words := len(b) / wire.WordSize
	for w := 0; w < words; {
		word := b[w*wire.WordSize : (w+1)*wire.WordSize]
		w++
		tag := byte(0)
		for bit, c := range word {
			if c != 0 {
				tag |= 1 << bit
			}
		}
		out = append(out, tag)
		for _, c := range word {
			if c != 0 {
				out = append(out, c)
			}
		}

		switch tag {
		case 0x00:
			n := 0
			for w < words && n < 0xff && zeros(b[w*wire.WordSize:(w+1)*wire.WordSize]) == wire.WordSize {
				n++
				w++
			}
			out = append(out, byte(n))
		case 0xff:
			start := w
			for w < words && w-start < 0xff && zeros(b[w*wire.WordSize:(w+1)*wire.WordSize]) < 2 {
				w++
			}
			out = append(out, byte(w-start))
			out = append(out, b[start*wire.WordSize:w*wire.WordSize]...)
		}
	}
	return out
}

func zeros(word []byte) int {
	n := 0
	for _, c := range word {
		if c == 0 {
			n++
		}
	}
	return n
}

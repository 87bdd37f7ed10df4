// Package transport turns serialized messages into raw segment buffers and
// back: standard stream framing, packing, base64 text, and a checksummed
// envelope with optional zstd compression.
package transport

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rawbytedev/capread/pkg/wire"
)

// MaxSegments bounds the segment table of a stream.
const MaxSegments = 512

var (
	ErrTruncated   = errors.New("stream truncated")
	ErrSegmentSize = errors.New("segment table too large")
)

// DecodeStream splits a framed stream into its segments. The frame is a
// little-endian uint32 segment count minus one, one uint32 word size per
// segment, padding to a word boundary, then the segment bodies. The returned
// slices alias b.
func DecodeStream(b []byte) ([][]byte, error) {
	if len(b) < 4 {
		return nil, errors.Wrap(ErrTruncated, "segment count")
	}
	count := uint64(binary.LittleEndian.Uint32(b)) + 1
	if count > MaxSegments {
		return nil, errors.Wrapf(ErrSegmentSize, "%d segments", count)
	}
	header := wire.RoundUp(4 + 4*int(count))
	if len(b) < header {
		return nil, errors.Wrap(ErrTruncated, "segment table")
	}
	segments := make([][]byte, count)
	pos := header
	for i := range segments {
		size := int(binary.LittleEndian.Uint32(b[4+4*i:])) * wire.WordSize
		if size > len(b)-pos {
			return nil, errors.Wrapf(ErrTruncated, "segment %d of %d bytes", i, size)
		}
		segments[i] = b[pos : pos+size : pos+size]
		pos += size
	}
	logrus.Debugf("Decoded stream of %d segments, %d bytes", count, pos)
	return segments, nil
}

// EncodeStream frames word-aligned segments into a single stream.
func EncodeStream(segments [][]byte) []byte {
	header := wire.RoundUp(4 + 4*len(segments))
	total := header
	for _, s := range segments {
		total += wire.RoundUp(len(s))
	}
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out, uint32(len(segments)-1))
	pos := header
	for i, s := range segments {
		binary.LittleEndian.PutUint32(out[4+4*i:], uint32(wire.RoundUp(len(s))/wire.WordSize))
		copy(out[pos:], s)
		pos += wire.RoundUp(len(s))
	}
	return out
}

// DecodeBase64 decodes standard base64 text, the textual form of a stream.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "base64")
	}
	return b, nil
}

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

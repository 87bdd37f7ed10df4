package transport

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rawbytedev/capread/internal/common"
)

// Envelope layout:
//
//	magic     2B "CR"
//	type      1B TypeStream
//	length    4B whole frame including CRC
//	flags     1B FlagPacked | FlagZstd
//	rawLen    varint, payload length before zstd
//	payload
//	crc32     4B IEEE over type..payload
const (
	TypeStream = 0x01

	FlagPacked = 0x01
	FlagZstd   = 0x02

	frameOverhead = 2 + 1 + 4 + 1 + 4
)

var magic = [2]byte{'C', 'R'}

var (
	ErrNotFrame = errors.New("not a stream frame")
	ErrChecksum = errors.New("crc mismatch")
)

// Envelope encodes and decodes checksummed stream frames. It keeps its zstd
// coders between calls and is not safe for concurrent use.
type Envelope struct {
	// Limit bounds the decoded stream size. Zero means unbounded.
	Limit int

	enc *zstd.Encoder
	dec *zstd.Decoder
	buf bytes.Buffer
}

// Encode wraps a framed stream, packing and compressing it as flags ask.
func (e *Envelope) Encode(stream []byte, flags byte) ([]byte, error) {
	payload := stream
	if flags&FlagPacked != 0 {
		payload = Pack(payload)
	}
	rawLen := len(payload)
	if flags&FlagZstd != 0 {
		if e.enc == nil {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
			if err != nil {
				return nil, err
			}
			e.enc = enc
		}
		payload = e.enc.EncodeAll(payload, nil)
	}

	e.buf.Reset()
	e.buf.Write(magic[:])
	e.buf.WriteByte(TypeStream)
	e.buf.Write([]byte{0, 0, 0, 0}) // length placeholder
	e.buf.WriteByte(flags)
	e.buf.Write(common.AppendVarUint(nil, uint64(rawLen)))
	e.buf.Write(payload)

	out := e.buf.Bytes()
	binary.LittleEndian.PutUint32(out[3:], uint32(len(out)+4))
	crc := crc32.ChecksumIEEE(out[2:])
	out = binary.LittleEndian.AppendUint32(out, crc)
	return bytes.Clone(out), nil
}

// Decode verifies a frame and returns the stream inside it.
func (e *Envelope) Decode(frame []byte) ([]byte, error) {
	if len(frame) < frameOverhead || frame[0] != magic[0] || frame[1] != magic[1] || frame[2] != TypeStream {
		return nil, ErrNotFrame
	}
	if length, _ := common.Uint32At(frame, 3); int(length) != len(frame) {
		return nil, errors.Wrapf(ErrNotFrame, "length %d, have %d bytes", length, len(frame))
	}
	end := len(frame) - 4
	if want, _ := common.Uint32At(frame, end); crc32.ChecksumIEEE(frame[2:end]) != want {
		return nil, ErrChecksum
	}
	flags := frame[7]
	rawLen, n := common.ReadVarUint(frame[8:end])
	if n == 0 {
		return nil, errors.Wrap(ErrNotFrame, "payload length")
	}
	if e.Limit > 0 && rawLen > uint64(e.Limit) {
		return nil, errors.Wrapf(ErrUnpackLimit, "payload of %d bytes", rawLen)
	}
	payload := frame[8+n : end]

	if flags&FlagZstd != 0 {
		if e.dec == nil {
			opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
			if e.Limit > 0 {
				opts = append(opts, zstd.WithDecoderMaxMemory(uint64(e.Limit)))
			}
			dec, err := zstd.NewReader(nil, opts...)
			if err != nil {
				return nil, err
			}
			e.dec = dec
		}
		out, err := e.dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd")
		}
		payload = out
	}
	if uint64(len(payload)) != rawLen {
		return nil, errors.Wrapf(ErrNotFrame, "payload is %d bytes, header says %d", len(payload), rawLen)
	}
	if flags&FlagPacked != 0 {
		return Unpack(payload, e.Limit)
	}
	logrus.Debugf("Decoded %d byte stream frame, flags %#x", len(payload), flags)
	return payload, nil
}

// Close releases the zstd coders.
func (e *Envelope) Close() {
	if e.enc != nil {
		e.enc.Close()
	}
	if e.dec != nil {
		e.dec.Close()
	}
}

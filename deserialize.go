package capread

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/transport"
)

// Options selects how Deserialize decodes its input and which budget the
// resulting reader gets.
type Options struct {
	// MaxBytes and MaxDepth bound the reader. Both zero selects Unlimited.
	MaxBytes int
	MaxDepth int
	// MaxStream bounds the decoded stream size of packed or framed
	// input. Zero means unbounded.
	MaxStream int
	Packed    bool
	Framed    bool
	// Wrap, when set, decorates the reader's limiter, for example to count
	// its charges.
	Wrap func(arena.Limiter) arena.Limiter
}

func (o Options) limiter() arena.Limiter {
	var l arena.Limiter = arena.Unlimited{}
	if o.MaxBytes != 0 || o.MaxDepth != 0 {
		l = arena.NewLimited(o.MaxBytes, o.MaxDepth)
	}
	if o.Wrap != nil {
		l = o.Wrap(l)
	}
	return l
}

// Deserialize decodes a serialized stream into a reader.
func Deserialize(data []byte, opts Options) (*Reader, error) {
	if opts.Framed {
		env := &transport.Envelope{Limit: opts.MaxStream}
		defer env.Close()
		var err error
		if data, err = env.Decode(data); err != nil {
			return nil, errors.Wrap(err, "envelope")
		}
	} else if opts.Packed {
		var err error
		if data, err = transport.Unpack(data, opts.MaxStream); err != nil {
			return nil, errors.Wrap(err, "unpack")
		}
	}
	buffers, err := transport.DecodeStream(data)
	if err != nil {
		return nil, err
	}
	segments, err := FromBuffers(buffers)
	if err != nil {
		return nil, err
	}
	return New(segments, opts.limiter()), nil
}

// DeserializeUnsafe decodes base64 text holding a packed stream into an
// unlimited reader. Use it only for trusted input.
func DeserializeUnsafe(text string) (*Reader, error) {
	data, err := transport.DecodeBase64(text)
	if err != nil {
		return nil, err
	}
	return Deserialize(data, Options{Packed: true})
}

// Serialize frames the valid bytes of segments into a stream.
func Serialize(segments []*arena.Segment) []byte {
	buffers := make([][]byte, len(segments))
	for i, s := range segments {
		buffers[i] = s.Bytes()
	}
	return transport.EncodeStream(buffers)
}

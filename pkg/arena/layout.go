package arena

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/capread/pkg/wire"
)

// Bytes is the byte geometry of a struct: data section and pointer section
// lengths.
type Bytes struct {
	Data     int
	Pointers int
}

// StructLayout locates the sections of a struct inside its segment.
type StructLayout struct {
	Bytes           Bytes
	DataSection     int
	PointersSection int
	End             int
}

// ListEncoding is a list's size class together with the per-element geometry
// exposed to the reader.
type ListEncoding struct {
	Flag  wire.SizeClass
	Bytes Bytes
}

// ListLayout locates the elements of a non-bool list. Wire is the element
// geometry on the wire; it exceeds Encoding.Bytes when the wire elements are
// larger than the reader expects.
type ListLayout struct {
	Encoding ListEncoding
	Wire     Bytes
	Begin    int
	Length   int
}

// Stride is the distance in bytes between consecutive elements.
func (l ListLayout) Stride() int {
	return l.Wire.Data + l.Wire.Pointers
}

// BoolListLayout locates a bit-packed list of Length bools.
type BoolListLayout struct {
	Begin  int
	Length int
}

// BlobLayout locates Length raw bytes.
type BlobLayout struct {
	Begin  int
	Length int
}

// voidRun is the number of zero-width elements charged as one word, so that
// huge lists of empty elements cannot be traversed for free.
const voidRun = 64

// charge consumes n bytes of budget, rounded up to whole words.
func (a *Arena) charge(n int) error {
	return a.limiter.ChargeBytes(wire.RoundUp(n))
}

func (a *Arena) chargeElements(length, stride int) error {
	if stride == 0 {
		return a.charge((length + voidRun - 1) / voidRun * wire.WordSize)
	}
	return a.charge(length * stride)
}

// GenericStructLayout trusts the struct tag of p verbatim.
func (a *Arena) GenericStructLayout(p *Pointer) (StructLayout, error) {
	if err := expectKind(p, wire.Struct); err != nil {
		return StructLayout{}, err
	}
	data := wire.DataWords(p.Hi) * wire.WordSize
	pointers := wire.PointerWords(p.Hi) * wire.WordSize
	begin := p.Object.Position
	if err := p.Object.Segment.checkRange(begin, data+pointers); err != nil {
		return StructLayout{}, err
	}
	if err := a.charge(data + pointers); err != nil {
		return StructLayout{}, err
	}
	return StructLayout{
		Bytes:           Bytes{Data: data, Pointers: pointers},
		DataSection:     begin,
		PointersSection: begin + data,
		End:             begin + data + pointers,
	}, nil
}

// SpecificStructLayout reconciles the struct addressed by p with the shape a
// reader expects. Each section exposes the smaller of the wire and expected
// lengths; only the exposed bytes are charged. Reads beyond an exposed
// section are the reader's zero values.
func (a *Arena) SpecificStructLayout(p *Pointer, expected Bytes) (StructLayout, error) {
	if err := expectKind(p, wire.Struct); err != nil {
		return StructLayout{}, err
	}
	data := wire.DataWords(p.Hi) * wire.WordSize
	pointers := wire.PointerWords(p.Hi) * wire.WordSize
	begin := p.Object.Position
	if err := p.Object.Segment.checkRange(begin, data+pointers); err != nil {
		return StructLayout{}, err
	}
	exposed := Bytes{Data: min(data, expected.Data), Pointers: min(pointers, expected.Pointers)}
	if err := a.charge(exposed.Data + exposed.Pointers); err != nil {
		return StructLayout{}, err
	}
	return StructLayout{
		Bytes:           exposed,
		DataSection:     begin,
		PointersSection: begin + data,
		End:             begin + data + exposed.Pointers,
	}, nil
}

// BoolListLayout decodes a bit list.
func (a *Arena) BoolListLayout(p *Pointer) (BoolListLayout, error) {
	if err := expectList(p, wire.Bit); err != nil {
		return BoolListLayout{}, err
	}
	length := wire.ListCount(p.Hi)
	bytes := (length + 7) / 8
	if err := p.Object.Segment.checkRange(p.Object.Position, bytes); err != nil {
		return BoolListLayout{}, err
	}
	if err := a.charge(bytes); err != nil {
		return BoolListLayout{}, err
	}
	return BoolListLayout{Begin: p.Object.Position, Length: length}, nil
}

// BlobLayout decodes a byte list holding raw data or text.
func (a *Arena) BlobLayout(p *Pointer) (BlobLayout, error) {
	if err := expectList(p, wire.Byte); err != nil {
		return BlobLayout{}, err
	}
	length := wire.ListCount(p.Hi)
	if err := p.Object.Segment.checkRange(p.Object.Position, length); err != nil {
		return BlobLayout{}, err
	}
	if err := a.charge(length); err != nil {
		return BlobLayout{}, err
	}
	return BlobLayout{Begin: p.Object.Position, Length: length}, nil
}

// GenericNonboolListLayout trusts the list tag of p verbatim.
func (a *Arena) GenericNonboolListLayout(p *Pointer) (ListLayout, error) {
	l, err := a.listGeometry(p)
	if err != nil {
		return ListLayout{}, err
	}
	if err := a.chargeElements(l.Length, l.Stride()); err != nil {
		return ListLayout{}, err
	}
	return l, nil
}

// SpecificNonboolListLayout reconciles the list addressed by p with the
// element encoding a reader expects, exposing the smaller of the wire and
// expected geometry per section of each element. Elements that share no
// section with the expectation, such as bytes read as pointers, are a kind
// mismatch. Void lists on either side are always accepted.
func (a *Arena) SpecificNonboolListLayout(p *Pointer, expected ListEncoding) (ListLayout, error) {
	if expected.Flag == wire.Bit {
		return ListLayout{}, errors.Wrap(ErrKindMismatch, "bool lists decode with BoolListLayout")
	}
	l, err := a.listGeometry(p)
	if err != nil {
		return ListLayout{}, err
	}
	got := l.Encoding.Bytes
	exposed := Bytes{
		Data:     min(got.Data, expected.Bytes.Data),
		Pointers: min(got.Pointers, expected.Bytes.Pointers),
	}
	if exposed == (Bytes{}) && got != (Bytes{}) && expected.Bytes != (Bytes{}) {
		return ListLayout{}, errors.Wrapf(ErrKindMismatch, "%s list elements %d/%d share no section with expected %s elements %d/%d",
			l.Encoding.Flag, got.Data, got.Pointers, expected.Flag, expected.Bytes.Data, expected.Bytes.Pointers)
	}
	l.Encoding.Bytes = exposed
	if err := a.chargeElements(l.Length, l.Encoding.Bytes.Data+l.Encoding.Bytes.Pointers); err != nil {
		return ListLayout{}, err
	}
	return l, nil
}

// listGeometry bounds-checks a non-bool list and, for composite lists,
// charges and decodes its inline tag word. Elements are not charged.
func (a *Arena) listGeometry(p *Pointer) (ListLayout, error) {
	if err := expectKind(p, wire.List); err != nil {
		return ListLayout{}, err
	}
	seg, begin := p.Object.Segment, p.Object.Position
	flag := wire.ListClass(p.Hi)
	if flag == wire.Bit {
		return ListLayout{}, errors.Wrap(ErrKindMismatch, "bit list is not a non-bool list")
	}
	if flag != wire.Composite {
		data, pointers, _ := flag.ElementBytes()
		length := wire.ListCount(p.Hi)
		if err := seg.checkRange(begin, length*(data+pointers)); err != nil {
			return ListLayout{}, err
		}
		return ListLayout{
			Encoding: ListEncoding{Flag: flag, Bytes: Bytes{Data: data, Pointers: pointers}},
			Wire:     Bytes{Data: data, Pointers: pointers},
			Begin:    begin,
			Length:   length,
		}, nil
	}

	words := wire.ListCount(p.Hi)
	if err := seg.checkRange(begin, wire.WordSize+words*wire.WordSize); err != nil {
		return ListLayout{}, err
	}
	if err := a.charge(wire.WordSize); err != nil {
		return ListLayout{}, err
	}
	tlo, thi := seg.word(begin)
	if wire.KindOf(tlo) != wire.Struct {
		return ListLayout{}, errors.Wrapf(ErrMalformedPointer, "segment %d: composite tag at %d is not a struct tag", seg.ID, begin)
	}
	length := wire.Offset(tlo)
	data := wire.DataWords(thi) * wire.WordSize
	pointers := wire.PointerWords(thi) * wire.WordSize
	if length < 0 || length*(data+pointers) > words*wire.WordSize {
		return ListLayout{}, errors.Wrapf(ErrMalformedPointer, "segment %d: composite list at %d declares %d elements of %d bytes in %d words",
			seg.ID, begin, length, data+pointers, words)
	}
	return ListLayout{
		Encoding: ListEncoding{Flag: wire.Composite, Bytes: Bytes{Data: data, Pointers: pointers}},
		Wire:     Bytes{Data: data, Pointers: pointers},
		Begin:    begin + wire.WordSize,
		Length:   length,
	}, nil
}

func expectKind(p *Pointer, kind wire.Kind) error {
	if p == nil {
		return errors.Wrapf(ErrKindMismatch, "null pointer, want %s", kind)
	}
	if p.Kind != kind {
		return errors.Wrapf(ErrKindMismatch, "got %s pointer, want %s", p.Kind, kind)
	}
	return nil
}

func expectList(p *Pointer, class wire.SizeClass) error {
	if err := expectKind(p, wire.List); err != nil {
		return err
	}
	if got := wire.ListClass(p.Hi); got != class {
		return errors.Wrapf(ErrKindMismatch, "got %s list, want %s", got, class)
	}
	return nil
}

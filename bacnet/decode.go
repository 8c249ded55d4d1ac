package bacnet

import (
	"fmt"
)

// Tag is a decoded tag header
type Tag struct {
	Number    uint8
	Class     TagClass
	Length    int
	HeaderLen int
	Opening   bool
	Closing   bool
}

// IsContext reports whether the tag is a context specific primitive tag.
func (t Tag) IsContext() bool {
	return t.Class == TagClassContext && !t.Opening && !t.Closing
}

// contentLen returns the number of content octets following the header.
// An application boolean carries its value in the length field.
func (t Tag) contentLen() int {
	if t.Opening || t.Closing {
		return 0
	}
	if t.Class == TagClassApplication && ApplicationTag(t.Number) == TagBoolean {
		return 0
	}
	return t.Length
}

// ContextValue is a context tagged primitive whose type is only known
// to the service that defines it.
type ContextValue struct {
	Tag  uint8
	Data []byte
}

func (c ContextValue) String() string {
	return fmt.Sprintf("[%d]%X", c.Tag, c.Data)
}

// Constructed is a value enclosed between an opening and a closing tag.
type Constructed struct {
	Tag    uint8
	Values []interface{}
}

// Enumerated is an application tagged enumerated value.
type Enumerated uint32

// TagReader walks an encoded tag stream.
type TagReader struct {
	data []byte
	off  int
}

// NewTagReader creates a reader over data
func NewTagReader(data []byte) *TagReader {
	return &TagReader{data: data}
}

// Done reports whether all data has been consumed
func (r *TagReader) Done() bool {
	return r.off >= len(r.data)
}

// Offset returns the current read position
func (r *TagReader) Offset() int {
	return r.off
}

// Remaining returns the unread bytes
func (r *TagReader) Remaining() []byte {
	return r.data[r.off:]
}

// Peek decodes the next tag header without consuming it.
func (r *TagReader) Peek() (Tag, error) {
	if r.Done() {
		return Tag{}, ErrUnexpectedEnd
	}
	num, class, length, headerLen, err := DecodeTagNumber(r.data[r.off:])
	if err != nil {
		return Tag{}, err
	}
	t := Tag{Number: num, Class: class, Length: length, HeaderLen: headerLen}
	switch length {
	case -1:
		t.Opening = true
		t.Length = 0
	case -2:
		t.Closing = true
		t.Length = 0
	}
	if r.off+t.HeaderLen+t.contentLen() > len(r.data) {
		return Tag{}, ErrUnexpectedEnd
	}
	return t, nil
}

// Next consumes the next tag and returns it with its content octets.
func (r *TagReader) Next() (Tag, []byte, error) {
	t, err := r.Peek()
	if err != nil {
		return t, nil, err
	}
	start := r.off + t.HeaderLen
	end := start + t.contentLen()
	r.off = end
	return t, r.data[start:end], nil
}

// IsContext reports whether the next tag is context primitive tag n.
func (r *TagReader) IsContext(n uint8) bool {
	t, err := r.Peek()
	return err == nil && t.IsContext() && t.Number == n
}

// IsOpening reports whether the next tag is opening tag n.
func (r *TagReader) IsOpening(n uint8) bool {
	t, err := r.Peek()
	return err == nil && t.Opening && t.Number == n
}

// IsClosing reports whether the next tag is closing tag n.
func (r *TagReader) IsClosing(n uint8) bool {
	t, err := r.Peek()
	return err == nil && t.Closing && t.Number == n
}

// Opening consumes opening tag n.
func (r *TagReader) Opening(n uint8) error {
	if r.Done() {
		return fmt.Errorf("%w: expected opening tag %d", ErrUnexpectedEnd, n)
	}
	if !r.IsOpening(n) {
		return fmt.Errorf("%w: expected opening tag %d", ErrInvalidTag, n)
	}
	_, _, err := r.Next()
	return err
}

// Closing consumes closing tag n.
func (r *TagReader) Closing(n uint8) error {
	if !r.IsClosing(n) {
		return fmt.Errorf("%w: expected closing tag %d", ErrInvalidTag, n)
	}
	_, _, err := r.Next()
	return err
}

func (r *TagReader) context(n uint8) ([]byte, error) {
	if r.Done() {
		return nil, fmt.Errorf("%w: expected context tag %d", ErrUnexpectedEnd, n)
	}
	if !r.IsContext(n) {
		return nil, fmt.Errorf("%w: expected context tag %d", ErrInvalidTag, n)
	}
	_, data, err := r.Next()
	return data, err
}

// ContextUnsigned consumes context tag n as an unsigned or enumerated value.
func (r *TagReader) ContextUnsigned(n uint8) (uint32, error) {
	data, err := r.context(n)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 || len(data) > 4 {
		return 0, fmt.Errorf("%w: unsigned length %d", ErrInvalidTag, len(data))
	}
	return DecodeUnsigned(data), nil
}

// ContextObjectIdentifier consumes context tag n as an object identifier.
func (r *TagReader) ContextObjectIdentifier(n uint8) (ObjectIdentifier, error) {
	data, err := r.context(n)
	if err != nil {
		return ObjectIdentifier{}, err
	}
	if len(data) != 4 {
		return ObjectIdentifier{}, fmt.Errorf("%w: object identifier length %d", ErrInvalidTag, len(data))
	}
	return DecodeObjectIdentifierFromBytes(data), nil
}

// ContextCharacterString consumes context tag n as a character string.
func (r *TagReader) ContextCharacterString(n uint8) (string, error) {
	data, err := r.context(n)
	if err != nil {
		return "", err
	}
	return DecodeCharacterString(data), nil
}

// ContextBoolean consumes context tag n as a boolean.
func (r *TagReader) ContextBoolean(n uint8) (bool, error) {
	data, err := r.context(n)
	if err != nil {
		return false, err
	}
	if len(data) != 1 {
		return false, fmt.Errorf("%w: boolean length %d", ErrInvalidTag, len(data))
	}
	return data[0] != 0, nil
}

// ApplicationUnsigned consumes an application tagged unsigned value.
func (r *TagReader) ApplicationUnsigned() (uint32, error) {
	v, err := r.Application()
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint32)
	if !ok {
		return 0, fmt.Errorf("%w: expected unsigned, got %T", ErrInvalidDataType, v)
	}
	return u, nil
}

// Application consumes one application tagged value and returns it as a
// Go value: nil, bool, uint32, int32, float32, float64, []byte, string,
// BitString, Enumerated, Date, Time or ObjectIdentifier.
func (r *TagReader) Application() (interface{}, error) {
	t, data, err := r.Next()
	if err != nil {
		return nil, err
	}
	if t.Class != TagClassApplication {
		return nil, fmt.Errorf("%w: expected application tag, got context %d", ErrInvalidTag, t.Number)
	}
	return decodeApplicationValue(t, data)
}

func decodeApplicationValue(t Tag, data []byte) (interface{}, error) {
	switch ApplicationTag(t.Number) {
	case TagNull:
		return nil, nil
	case TagBoolean:
		return t.Length == 1, nil
	case TagUnsignedInt:
		return DecodeUnsigned(data), nil
	case TagSignedInt:
		return DecodeSigned(data), nil
	case TagReal:
		return DecodeReal(data), nil
	case TagDouble:
		return DecodeDouble(data), nil
	case TagOctetString:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case TagCharacterString:
		return DecodeCharacterString(data), nil
	case TagBitString:
		return DecodeBitString(data), nil
	case TagEnumerated:
		return Enumerated(DecodeUnsigned(data)), nil
	case TagDate:
		return DecodeDate(data)
	case TagTime:
		return DecodeTime(data)
	case TagObjectID:
		if len(data) != 4 {
			return nil, fmt.Errorf("%w: object identifier length %d", ErrInvalidTag, len(data))
		}
		return DecodeObjectIdentifierFromBytes(data), nil
	}
	return nil, fmt.Errorf("%w: application tag %d", ErrInvalidDataType, t.Number)
}

// Value consumes the next value of any kind. Context primitives are
// returned as ContextValue and constructed data as Constructed.
func (r *TagReader) Value() (interface{}, error) {
	t, err := r.Peek()
	if err != nil {
		return nil, err
	}
	switch {
	case t.Opening:
		if _, _, err := r.Next(); err != nil {
			return nil, err
		}
		values, err := r.ValuesUntilClosing(t.Number)
		if err != nil {
			return nil, err
		}
		if err := r.Closing(t.Number); err != nil {
			return nil, err
		}
		return Constructed{Tag: t.Number, Values: values}, nil
	case t.Closing:
		return nil, fmt.Errorf("%w: unexpected closing tag %d", ErrInvalidTag, t.Number)
	case t.Class == TagClassContext:
		_, data, err := r.Next()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		copy(out, data)
		return ContextValue{Tag: t.Number, Data: out}, nil
	}
	return r.Application()
}

// ValuesUntilClosing reads values until closing tag n is next. The
// closing tag itself is left unread.
func (r *TagReader) ValuesUntilClosing(n uint8) ([]interface{}, error) {
	var values []interface{}
	for !r.IsClosing(n) {
		if r.Done() {
			return nil, ErrUnexpectedEnd
		}
		v, err := r.Value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// RawUntilClosing returns the encoded bytes between the current position
// and closing tag n, consuming them and the closing tag.
func (r *TagReader) RawUntilClosing(n uint8) ([]byte, error) {
	start := r.off
	depth := 0
	for {
		t, err := r.Peek()
		if err != nil {
			return nil, err
		}
		if t.Closing && depth == 0 {
			if t.Number != n {
				return nil, fmt.Errorf("%w: expected closing tag %d, got %d", ErrInvalidTag, n, t.Number)
			}
			raw := r.data[start:r.off]
			_, _, err := r.Next()
			return raw, err
		}
		if t.Opening {
			depth++
		} else if t.Closing {
			depth--
		}
		if _, _, err := r.Next(); err != nil {
			return nil, err
		}
	}
}

package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedWire is returned when protowire bytes cannot be parsed.
var ErrMalformedWire = errors.New("codec: malformed wire data")

// WireMessage is a value with a hand-written protobuf wire layout.
type WireMessage interface {
	AppendWire(b []byte) []byte
	ConsumeWire(b []byte) error
}

// WireCodec encodes WireMessage values in protobuf wire format without
// generated code. Smaller than msgpack since field names are not sent.
type WireCodec struct{}

func (WireCodec) Name() string { return NameProtowire }

func (WireCodec) Encode(v any, b []byte) ([]byte, error) {
	m, ok := v.(WireMessage)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a WireMessage", ErrUnsupportedType, v)
	}
	return m.AppendWire(b), nil
}

func (WireCodec) Decode(v any, b []byte) error {
	m, ok := v.(WireMessage)
	if !ok {
		return fmt.Errorf("%w: %T is not a WireMessage", ErrUnsupportedType, v)
	}
	return m.ConsumeWire(b)
}

// AppendVarintField appends a zig-zag encoded int64 field. Zero values are omitted.
func AppendVarintField(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// AppendStringField appends a length-delimited string field. Empty strings are omitted.
func AppendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendRepeatedString appends one length-delimited field per element.
func AppendRepeatedString(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

// Field is one decoded field handed to a ConsumeFields callback. Exactly one of
// Varint or Bytes is meaningful, depending on Type.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// Int64 returns a zig-zag encoded varint field value.
func (f Field) Int64() int64 {
	return protowire.DecodeZigZag(f.Varint)
}

// ConsumeFields walks every field in b. Unknown fields are passed to fn too;
// fn ignores what it does not recognise.
func ConsumeFields(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: tag: %v", ErrMalformedWire, protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedWire, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

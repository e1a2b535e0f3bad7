// Package codec serializes message payloads. The frame header is handled by the
// net package; a Codec only sees the bytes after it.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCodec is returned by ByName for an unregistered name.
	ErrUnknownCodec = errors.New("codec: unknown codec")
	// ErrUnsupportedType is returned when a value cannot be handled by a codec.
	ErrUnsupportedType = errors.New("codec: unsupported type")
)

// Codec encodes and decodes payload values.
type Codec interface {
	Name() string
	// Encode appends the encoding of v to b.
	Encode(v any, b []byte) ([]byte, error)
	// Decode fills v, a pointer, from b.
	Decode(v any, b []byte) error
}

const (
	NameMsgpack   = "msgpack"
	NameProtowire = "protowire"
)

// ByName returns the codec registered under name. An empty name selects msgpack.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", NameMsgpack:
		return MsgpackCodec{}, nil
	case NameProtowire:
		return WireCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

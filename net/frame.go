package net

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the kind tag plus the little-endian payload length.
	HeaderSize = 3
	// MaxDatagramSize is the largest datagram either side sends or reads.
	MaxDatagramSize = 512
	// MaxPayloadSize is the largest payload that fits in one datagram.
	MaxPayloadSize = MaxDatagramSize - HeaderSize
)

// EncodeFrame builds a datagram: kind, uint16 LE payload length, payload.
func EncodeFrame(kind Kind, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// DecodeFrame splits a datagram into kind and payload. The declared length is
// authoritative: it must not exceed what was received, and trailing bytes past
// it are ignored. The payload does not alias datagram.
func DecodeFrame(datagram []byte) (Kind, []byte, error) {
	if len(datagram) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrFraming, len(datagram), HeaderSize)
	}
	kind := Kind(datagram[0])
	size := int(binary.LittleEndian.Uint16(datagram[1:3]))
	if size > len(datagram)-HeaderSize {
		return kind, nil, fmt.Errorf("%w: declared %d bytes, received %d", ErrFraming, size, len(datagram)-HeaderSize)
	}
	payload := make([]byte, size)
	copy(payload, datagram[HeaderSize:HeaderSize+size])
	return kind, payload, nil
}

package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes structs as MessagePack maps keyed by their msgpack tags.
// It is the encoding the game server speaks.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return NameMsgpack }

func (MsgpackCodec) Encode(v any, b []byte) ([]byte, error) {
	buf := bytes.NewBuffer(b)
	enc := msgpack.NewEncoder(buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("codec: msgpack encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(v any, b []byte) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("codec: msgpack decode %T: %w", v, err)
	}
	return nil
}

package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protowire"
)

type roster struct {
	SessionID  int64    `msgpack:"sessionId"`
	PacketID   int64    `msgpack:"packetId"`
	Characters []string `msgpack:"characterArray"`
}

func (r *roster) AppendWire(b []byte) []byte {
	b = AppendVarintField(b, 1, r.SessionID)
	b = AppendVarintField(b, 2, r.PacketID)
	return AppendRepeatedString(b, 3, r.Characters)
}

func (r *roster) ConsumeWire(b []byte) error {
	r.Characters = []string{}
	return ConsumeFields(b, func(f Field) error {
		switch f.Num {
		case 1:
			r.SessionID = f.Int64()
		case 2:
			r.PacketID = f.Int64()
		case 3:
			r.Characters = append(r.Characters, string(f.Bytes))
		}
		return nil
	})
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, NameMsgpack, c.Name())

	c, err = ByName("ProtoWire")
	require.NoError(t, err)
	assert.Equal(t, NameProtowire, c.Name())

	_, err = ByName("json")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCodecsRoundTrip(t *testing.T) {
	in := &roster{SessionID: 42, PacketID: -3, Characters: []string{"Aric", "Brienne"}}

	for _, c := range []Codec{MsgpackCodec{}, WireCodec{}} {
		t.Run(c.Name(), func(t *testing.T) {
			prefix := []byte{0xAA}
			b, err := c.Encode(in, prefix)
			require.NoError(t, err)
			assert.Equal(t, byte(0xAA), b[0], "encode appends")

			out := &roster{}
			require.NoError(t, c.Decode(out, b[1:]))
			if diff := cmp.Diff(in, out); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMsgpackFieldNames(t *testing.T) {
	b, err := MsgpackCodec{}.Encode(&roster{SessionID: 7, Characters: []string{}}, nil)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(b, &m))
	assert.Contains(t, m, "sessionId")
	assert.Contains(t, m, "packetId")
	require.Contains(t, m, "characterArray")
	assert.NotNil(t, m["characterArray"], "empty list stays a list")
}

func TestWireCodecRejectsPlainValues(t *testing.T) {
	_, err := WireCodec{}.Encode(struct{}{}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.ErrorIs(t, WireCodec{}.Decode(&struct{}{}, nil), ErrUnsupportedType)
}

func TestConsumeFields(t *testing.T) {
	t.Run("skips unknown fixed width", func(t *testing.T) {
		b := protowire.AppendTag(nil, 9, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, 1)
		b = AppendVarintField(b, 1, 5)

		out := &roster{}
		require.NoError(t, out.ConsumeWire(b))
		assert.EqualValues(t, 5, out.SessionID)
	})

	t.Run("truncated", func(t *testing.T) {
		b := AppendStringField(nil, 3, "Aric")
		out := &roster{}
		assert.ErrorIs(t, out.ConsumeWire(b[:len(b)-1]), ErrMalformedWire)
	})

	t.Run("zero values omitted", func(t *testing.T) {
		assert.Empty(t, AppendVarintField(nil, 1, 0))
		assert.Empty(t, AppendStringField(nil, 2, ""))
	})
}

func TestMsgpackDecodeError(t *testing.T) {
	err := MsgpackCodec{}.Decode(&roster{}, []byte{0xC1})
	assert.ErrorContains(t, err, "msgpack decode")
}

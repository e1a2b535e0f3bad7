package net

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lcx/oldentide-client/codec"
)

// Payload schemas. msgpack tags carry the field names the server expects;
// the protowire layout numbers sessionId 1, packetId 2 and the kind-specific
// fields from 3.

const (
	fieldSessionID protowire.Number = 1
	fieldPacketID  protowire.Number = 2
	fieldBody      protowire.Number = 3
	fieldBodyExtra protowire.Number = 4
)

// Packet is implemented by every payload schema.
type Packet interface {
	codec.WireMessage
	Kind() Kind
	// Header returns the session id and packet id every payload carries.
	Header() (sessionID, packetID int64)
}

// ErrorPacket is a server error report (ERROR).
type ErrorPacket struct {
	SessionID int64  `msgpack:"sessionId"`
	PacketID  int64  `msgpack:"packetId"`
	ErrorMsg  string `msgpack:"errorMsg"`
}

func (p *ErrorPacket) Kind() Kind { return KindError }
func (p *ErrorPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *ErrorPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	return codec.AppendStringField(b, fieldBody, p.ErrorMsg)
}

func (p *ErrorPacket) ConsumeWire(b []byte) error {
	*p = ErrorPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if !consumeHeader(f, &p.SessionID, &p.PacketID) && f.Num == fieldBody {
			p.ErrorMsg = string(f.Bytes)
		}
		return nil
	})
}

// ConnectPacket is both the CONNECT request and its reply; the reply carries
// the session id assigned by the server.
type ConnectPacket struct {
	SessionID int64 `msgpack:"sessionId"`
	PacketID  int64 `msgpack:"packetId"`
}

func (p *ConnectPacket) Kind() Kind { return KindConnect }
func (p *ConnectPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *ConnectPacket) AppendWire(b []byte) []byte {
	return appendHeader(b, p.SessionID, p.PacketID)
}

func (p *ConnectPacket) ConsumeWire(b []byte) error {
	*p = ConnectPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		consumeHeader(f, &p.SessionID, &p.PacketID)
		return nil
	})
}

// DisconnectPacket ends the session (DISCONNECT). No reply is expected.
type DisconnectPacket struct {
	SessionID int64 `msgpack:"sessionId"`
	PacketID  int64 `msgpack:"packetId"`
}

func (p *DisconnectPacket) Kind() Kind { return KindDisconnect }
func (p *DisconnectPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *DisconnectPacket) AppendWire(b []byte) []byte {
	return appendHeader(b, p.SessionID, p.PacketID)
}

func (p *DisconnectPacket) ConsumeWire(b []byte) error {
	*p = DisconnectPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		consumeHeader(f, &p.SessionID, &p.PacketID)
		return nil
	})
}

// ListCharactersPacket asks for, and returns, the account's character names.
// Characters is never nil on the wire.
type ListCharactersPacket struct {
	SessionID  int64    `msgpack:"sessionId"`
	PacketID   int64    `msgpack:"packetId"`
	Characters []string `msgpack:"characterArray"`
}

func (p *ListCharactersPacket) Kind() Kind { return KindListCharacters }
func (p *ListCharactersPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *ListCharactersPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	return codec.AppendRepeatedString(b, fieldBody, p.Characters)
}

func (p *ListCharactersPacket) ConsumeWire(b []byte) error {
	*p = ListCharactersPacket{Characters: []string{}}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if !consumeHeader(f, &p.SessionID, &p.PacketID) && f.Num == fieldBody {
			p.Characters = append(p.Characters, string(f.Bytes))
		}
		return nil
	})
}

// PlayerCommandPacket is a chat line or command typed by the player
// (SENDPLAYERCOMMAND). The server echoes it back as the reply.
type PlayerCommandPacket struct {
	SessionID int64  `msgpack:"sessionId"`
	PacketID  int64  `msgpack:"packetId"`
	Command   string `msgpack:"command"`
}

func (p *PlayerCommandPacket) Kind() Kind { return KindSendPlayerCommand }
func (p *PlayerCommandPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *PlayerCommandPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	return codec.AppendStringField(b, fieldBody, p.Command)
}

func (p *PlayerCommandPacket) ConsumeWire(b []byte) error {
	*p = PlayerCommandPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if !consumeHeader(f, &p.SessionID, &p.PacketID) && f.Num == fieldBody {
			p.Command = string(f.Bytes)
		}
		return nil
	})
}

// ServerCommandPacket is text pushed by the server (SENDSERVERCOMMAND).
type ServerCommandPacket struct {
	SessionID int64  `msgpack:"sessionId"`
	PacketID  int64  `msgpack:"packetId"`
	Command   string `msgpack:"command"`
}

func (p *ServerCommandPacket) Kind() Kind { return KindSendServerCommand }
func (p *ServerCommandPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *ServerCommandPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	return codec.AppendStringField(b, fieldBody, p.Command)
}

func (p *ServerCommandPacket) ConsumeWire(b []byte) error {
	*p = ServerCommandPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if !consumeHeader(f, &p.SessionID, &p.PacketID) && f.Num == fieldBody {
			p.Command = string(f.Bytes)
		}
		return nil
	})
}

// CreateCharacterPacket asks the server to create a character (CREATECHARACTER).
type CreateCharacterPacket struct {
	SessionID int64  `msgpack:"sessionId"`
	PacketID  int64  `msgpack:"packetId"`
	FirstName string `msgpack:"firstName"`
	LastName  string `msgpack:"lastName"`
}

func (p *CreateCharacterPacket) Kind() Kind { return KindCreateCharacter }
func (p *CreateCharacterPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *CreateCharacterPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	b = codec.AppendStringField(b, fieldBody, p.FirstName)
	return codec.AppendStringField(b, fieldBodyExtra, p.LastName)
}

func (p *CreateCharacterPacket) ConsumeWire(b []byte) error {
	*p = CreateCharacterPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if consumeHeader(f, &p.SessionID, &p.PacketID) {
			return nil
		}
		switch f.Num {
		case fieldBody:
			p.FirstName = string(f.Bytes)
		case fieldBodyExtra:
			p.LastName = string(f.Bytes)
		}
		return nil
	})
}

// SelectCharacterPacket picks the character to play (SELECTCHARACTER).
type SelectCharacterPacket struct {
	SessionID int64  `msgpack:"sessionId"`
	PacketID  int64  `msgpack:"packetId"`
	Character string `msgpack:"character"`
}

func (p *SelectCharacterPacket) Kind() Kind { return KindSelectCharacter }
func (p *SelectCharacterPacket) Header() (int64, int64) { return p.SessionID, p.PacketID }

func (p *SelectCharacterPacket) AppendWire(b []byte) []byte {
	b = appendHeader(b, p.SessionID, p.PacketID)
	return codec.AppendStringField(b, fieldBody, p.Character)
}

func (p *SelectCharacterPacket) ConsumeWire(b []byte) error {
	*p = SelectCharacterPacket{}
	return codec.ConsumeFields(b, func(f codec.Field) error {
		if !consumeHeader(f, &p.SessionID, &p.PacketID) && f.Num == fieldBody {
			p.Character = string(f.Bytes)
		}
		return nil
	})
}

func appendHeader(b []byte, sessionID, packetID int64) []byte {
	b = codec.AppendVarintField(b, fieldSessionID, sessionID)
	return codec.AppendVarintField(b, fieldPacketID, packetID)
}

// consumeHeader stores f if it is one of the shared fields and reports whether it was.
func consumeHeader(f codec.Field, sessionID, packetID *int64) bool {
	if f.Type != protowire.VarintType {
		return false
	}
	switch f.Num {
	case fieldSessionID:
		*sessionID = f.Int64()
	case fieldPacketID:
		*packetID = f.Int64()
	default:
		return false
	}
	return true
}

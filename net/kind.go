package net

import "strconv"

// Kind is the one-byte message kind tag at the start of every datagram. The
// numbering is shared with the game server and must not be reordered.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindGeneric
	KindAck
	KindError
	KindConnect
	KindDisconnect
	KindListCharacters
	KindCreateCharacter
	KindSelectCharacter
	KindSendPlayerCommand
	KindSendServerCommand
)

var _kindNames = [...]string{
	KindEmpty:             "EMPTY",
	KindGeneric:           "GENERIC",
	KindAck:               "ACK",
	KindError:             "ERROR",
	KindConnect:           "CONNECT",
	KindDisconnect:        "DISCONNECT",
	KindListCharacters:    "LISTCHARACTERS",
	KindCreateCharacter:   "CREATECHARACTER",
	KindSelectCharacter:   "SELECTCHARACTER",
	KindSendPlayerCommand: "SENDPLAYERCOMMAND",
	KindSendServerCommand: "SENDSERVERCOMMAND",
}

func (k Kind) String() string {
	if int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Known reports whether k is part of the shared enumeration.
func (k Kind) Known() bool {
	return int(k) < len(_kindNames)
}

// Route says what the receiver does with an inbound message.
type Route uint8

const (
	// RouteQueue hands the payload to the request waiting on the correlation queue.
	RouteQueue Route = iota
	// RouteError logs a server error report.
	RouteError
	// RouteNotify delivers server-pushed text to the display.
	RouteNotify
)

func (r Route) String() string {
	switch r {
	case RouteError:
		return "error"
	case RouteNotify:
		return "notify"
	default:
		return "queue"
	}
}

// Route is the receiver's dispatch table. Every kind not handled on the fast
// path, including unknown tags, is queued.
func (k Kind) Route() Route {
	switch k {
	case KindError:
		return RouteError
	case KindSendServerCommand:
		return RouteNotify
	default:
		return RouteQueue
	}
}

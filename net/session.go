package net

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/kelindar/bitmap"
)

// MaxPacketID is the largest packet id issued; the counter wraps back to 1
// after it so every id fits the in-flight bitmap.
const MaxPacketID = math.MaxUint32

// Session is the client's authentication state: the session id granted by the
// server (0 while unauthenticated) and the counter stamped into each request.
// All methods are safe for concurrent use.
type Session struct {
	id      atomic.Int64
	counter atomic.Int64

	// ids of requests still awaiting a reply
	mu       sync.Mutex
	inflight bitmap.Bitmap
}

func NewSession() *Session {
	s := &Session{}
	s.counter.Store(1)
	return s
}

// ID returns the current session id.
func (s *Session) ID() int64 {
	return s.id.Load()
}

// Authenticated reports whether a session id has been granted.
func (s *Session) Authenticated() bool {
	return s.ID() != 0
}

// Adopt makes id the current session and reports whether it changed.
func (s *Session) Adopt(id int64) bool {
	return s.id.Swap(id) != id
}

// NextPacketID returns the counter value for the next request and advances it,
// wrapping from MaxPacketID to 1. The id is remembered as in flight until Settle.
func (s *Session) NextPacketID() int64 {
	for {
		cur := s.counter.Load()
		id := cur
		if id < 1 || id > MaxPacketID {
			id = 1
		}
		next := id + 1
		if next > MaxPacketID {
			next = 1
		}
		if !s.counter.CompareAndSwap(cur, next) {
			continue
		}

		s.mu.Lock()
		s.inflight.Set(uint32(id))
		s.mu.Unlock()
		return id
	}
}

func validPacketID(id int64) bool {
	return id >= 1 && id <= MaxPacketID
}

// Issued reports whether packetID was handed out and is still in flight.
func (s *Session) Issued(packetID int64) bool {
	if !validPacketID(packetID) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight.Contains(uint32(packetID))
}

// PacketCounter returns the id the next request will carry.
func (s *Session) PacketCounter() int64 {
	return s.counter.Load()
}

// Settle forgets packetID and reports whether it was in flight.
func (s *Session) Settle(packetID int64) bool {
	if !validPacketID(packetID) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inflight.Contains(uint32(packetID)) {
		return false
	}
	s.inflight.Remove(uint32(packetID))
	return true
}

// InFlight returns how many issued packet ids have not been settled.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight.Count()
}

// Reset returns the session to its unauthenticated initial state.
func (s *Session) Reset() {
	s.id.Store(0)
	s.counter.Store(1)

	s.mu.Lock()
	s.inflight.Clear()
	s.mu.Unlock()
}

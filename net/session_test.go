package net

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Initial(t *testing.T) {
	s := NewSession()
	assert.Zero(t, s.ID())
	assert.False(t, s.Authenticated())
	assert.EqualValues(t, 1, s.PacketCounter())
	assert.Zero(t, s.InFlight())
}

func TestSession_PacketIDs(t *testing.T) {
	s := NewSession()
	assert.EqualValues(t, 1, s.NextPacketID())
	assert.EqualValues(t, 2, s.NextPacketID())
	assert.EqualValues(t, 3, s.PacketCounter())
	assert.Equal(t, 2, s.InFlight())

	assert.True(t, s.Settle(1))
	assert.False(t, s.Settle(1), "already settled")
	assert.False(t, s.Settle(99), "never issued")
	assert.False(t, s.Settle(0))
	assert.Equal(t, 1, s.InFlight())
}

func TestSession_Adopt(t *testing.T) {
	s := NewSession()
	assert.True(t, s.Adopt(42))
	assert.EqualValues(t, 42, s.ID())
	assert.True(t, s.Authenticated())
	assert.False(t, s.Adopt(42), "same id is not a change")
}

func TestSession_Reset(t *testing.T) {
	s := NewSession()
	s.Adopt(42)
	s.NextPacketID()
	s.NextPacketID()

	s.Reset()
	assert.Zero(t, s.ID())
	assert.EqualValues(t, 1, s.PacketCounter())
	assert.Zero(t, s.InFlight())
}

func TestSession_ConcurrentPacketIDsAreUnique(t *testing.T) {
	s := NewSession()
	const workers, each = 8, 250

	ids := make(chan int64, workers*each)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				ids <- s.NextPacketID()
				_ = s.ID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, workers*each)
	for id := range ids {
		require.False(t, seen[id], "duplicate packet id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*each)
	assert.Equal(t, workers*each, s.InFlight())
}

func TestSession_PacketIDWraps(t *testing.T) {
	s := NewSession()
	s.counter.Store(MaxPacketID)

	assert.EqualValues(t, MaxPacketID, s.NextPacketID())
	assert.EqualValues(t, 1, s.PacketCounter(), "counter wraps after the largest id")
	assert.EqualValues(t, 1, s.NextPacketID())
	assert.True(t, s.Issued(MaxPacketID))
	assert.True(t, s.Issued(1))
}

func TestSession_IDsBeyondRangeNeverAlias(t *testing.T) {
	s := NewSession()
	s.counter.Store(1 << 32)

	id := s.NextPacketID()
	assert.EqualValues(t, 1, id, "an out of range counter restarts at 1")
	assert.False(t, s.Issued(1<<32))
	assert.False(t, s.Settle(1<<32))
	assert.True(t, s.Settle(1))
	assert.Zero(t, s.InFlight())
}

func TestSession_Issued(t *testing.T) {
	s := NewSession()
	id := s.NextPacketID()
	assert.True(t, s.Issued(id))
	assert.False(t, s.Issued(id+1), "not yet issued")
	assert.False(t, s.Issued(0))
	assert.False(t, s.Issued(-1))

	s.Settle(id)
	assert.False(t, s.Issued(id), "settled")
}

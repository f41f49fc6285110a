// internal/session/directory_test.go
package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindLookupEvict(t *testing.T) {
	d := NewDirectory()
	playerID := uuid.New()

	d.Bind("tok-1", "ABCDE", playerID)
	s, ok := d.Lookup("tok-1")
	require.True(t, ok)
	assert.Equal(t, "ABCDE", s.RoomCode)
	assert.Equal(t, playerID, s.PlayerID)

	d.Evict("tok-1")
	_, ok = d.Lookup("tok-1")
	assert.False(t, ok)
}

func TestEmptyTokenNeverBinds(t *testing.T) {
	d := NewDirectory()
	d.Bind("", "ABCDE", uuid.New())
	_, ok := d.Lookup("")
	assert.False(t, ok)
}

func TestTokenResolvesToSinglePlayer(t *testing.T) {
	d := NewDirectory()
	first := uuid.New()
	second := uuid.New()

	d.Bind("tok", "AAAAA", first)
	d.Bind("tok", "BBBBB", second)

	s, ok := d.Lookup("tok")
	require.True(t, ok)
	assert.Equal(t, second, s.PlayerID)
	assert.Equal(t, "BBBBB", s.RoomCode)
}

func TestScheduleRemovalFires(t *testing.T) {
	d := NewDirectory()
	d.Grace = 10 * time.Millisecond
	playerID := uuid.New()

	fired := make(chan struct{})
	d.ScheduleRemoval(playerID, func() { close(fired) })
	require.True(t, d.HasPendingRemoval(playerID))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("grace timer did not fire")
	}
	assert.False(t, d.HasPendingRemoval(playerID))
}

func TestCancelRemoval(t *testing.T) {
	d := NewDirectory()
	d.Grace = 10 * time.Millisecond
	playerID := uuid.New()

	var fired atomic.Int32
	d.ScheduleRemoval(playerID, func() { fired.Add(1) })
	d.CancelRemoval(playerID)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.False(t, d.HasPendingRemoval(playerID))
}

func TestRescheduleReplacesPriorTimer(t *testing.T) {
	d := NewDirectory()
	d.Grace = 20 * time.Millisecond
	playerID := uuid.New()

	var first, second atomic.Int32
	d.ScheduleRemoval(playerID, func() { first.Add(1) })
	d.ScheduleRemoval(playerID, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, first.Load(), "replaced timer must not fire")
	assert.Equal(t, int32(1), second.Load())
}

// internal/game/room_store.go
package game

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RoomStore indexes all live rooms by code. It is the only cross-room
// store; its lock is never held while a room's lock is held.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
	rng   *rand.Rand
}

// NewRoomStore initializes an empty store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom generates an unused code, registers a fresh room under it and
// wires its OnEmpty callback to delete it from the store.
func (s *RoomStore) CreateRoom() *Room {
	s.mu.Lock()
	code := s.generateCodeLocked()
	room := NewRoom(code)
	room.OnEmpty = func(code string) {
		s.DeleteRoom(code)
	}
	s.rooms[code] = room
	s.mu.Unlock()

	log.Infof("RoomStore: created room %s", code)
	return room
}

// generateCodeLocked draws candidate codes until one is unused.
func (s *RoomStore) generateCodeLocked() string {
	buf := make([]byte, RoomCodeLength)
	for {
		for i := range buf {
			buf[i] = RoomCodeAlphabet[s.rng.Intn(len(RoomCodeAlphabet))]
		}
		code := string(buf)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// GetRoom looks a room up by code.
func (s *RoomStore) GetRoom(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	return r, ok
}

// DeleteRoom removes a room and marks it closed so in-flight timers no-op.
func (s *RoomStore) DeleteRoom(code string) {
	s.mu.Lock()
	r, ok := s.rooms[code]
	if ok {
		delete(s.rooms, code)
	}
	s.mu.Unlock()

	if ok {
		r.Close()
		log.Infof("RoomStore: deleted room %s", code)
	}
}

// Rooms returns a snapshot of the live rooms. The copy lets callers
// iterate without holding the store lock.
func (s *RoomStore) Rooms() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

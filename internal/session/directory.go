// internal/session/directory.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ReconnectGrace is how long a disconnected player keeps their seat before
// the grace timer removes them.
const ReconnectGrace = 120 * time.Second

// Session maps an opaque client-held token to an in-room identity.
type Session struct {
	Token    string
	RoomCode string
	PlayerID uuid.UUID
}

// Directory is the process-global token → identity map, plus the
// pending-reconnect timers for disconnected players. A token resolves to
// at most one live player at any time.
type Directory struct {
	mu       sync.Mutex
	sessions map[string]Session
	timers   map[uuid.UUID]*time.Timer

	// Grace is the reconnect window; overridable in tests.
	Grace time.Duration
}

// NewDirectory initializes an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		sessions: make(map[string]Session),
		timers:   make(map[uuid.UUID]*time.Timer),
		Grace:    ReconnectGrace,
	}
}

// Bind installs token → (roomCode, playerID), replacing any stale entry
// under the same token.
func (d *Directory) Bind(token, roomCode string, playerID uuid.UUID) {
	if token == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[token] = Session{Token: token, RoomCode: roomCode, PlayerID: playerID}
}

// Lookup resolves a token.
func (d *Directory) Lookup(token string) (Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[token]
	return s, ok
}

// Evict drops the entry under token, if any.
func (d *Directory) Evict(token string) {
	if token == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, token)
}

// ScheduleRemoval arms the pending-reconnect timer for a player. A prior
// timer for the same player is cancelled first, so rapid disconnect cycles
// keep exactly one timer alive. The callback runs only if this timer is
// still the player's current one when it fires.
func (d *Directory) ScheduleRemoval(playerID uuid.UUID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.timers[playerID]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.Grace, func() {
		d.mu.Lock()
		current, ok := d.timers[playerID]
		if !ok || current != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, playerID)
		d.mu.Unlock()

		log.Infof("Session: reconnect grace expired for player %s", playerID)
		fn()
	})
	d.timers[playerID] = timer
}

// CancelRemoval stops and forgets the player's pending-reconnect timer.
// Called on session:restore, room:leave and player:kick.
func (d *Directory) CancelRemoval(playerID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[playerID]; ok {
		timer.Stop()
		delete(d.timers, playerID)
	}
}

// HasPendingRemoval reports whether a grace timer is armed for the player.
func (d *Directory) HasPendingRemoval(playerID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[playerID]
	return ok
}

// internal/game/room.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gio-lom/kalakoba/internal/models"
)

// Phase is the coarse state of a room.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseSticks  Phase = "sticks"
	PhasePlaying Phase = "playing"
	PhaseStopped Phase = "stopped"
	PhaseResults Phase = "results"
	PhaseEnded   Phase = "ended"
)

// Settings holds the host-editable room configuration.
type Settings struct {
	MinTime    int      `json:"minTime"`
	MaxRounds  int      `json:"maxRounds"`
	UseBonus   bool     `json:"useBonus"`
	Categories []string `json:"categories"`
}

// DefaultSettings returns the configuration a new room starts with.
func DefaultSettings() Settings {
	cats := make([]string, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return Settings{
		MinTime:    60,
		MaxRounds:  5,
		UseBonus:   false,
		Categories: cats,
	}
}

// CategoryEntry is one active category of the current round: a stable key
// (cat_0, cat_1, …, bonus) and the display name clients render.
type CategoryEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Room is a group of up to MaxPlayers players with shared game state.
// All mutations are serialized by Mu; methods with the Unsafe suffix assume
// the caller holds it.
type Room struct {
	Code    string
	HostID  uuid.UUID
	Players map[uuid.UUID]*models.Player

	// Seats preserves join order. It is the canonical order for host
	// succession and standings tie-breaks.
	Seats []uuid.UUID

	Settings Settings

	Phase            Phase
	CurrentLetter    string
	UsedLetters      map[string]bool
	ActiveCategories []CategoryEntry
	CurrentRound     int
	StoppedBy        string
	StopTimerArmed   bool
	AllSubmitted     bool

	// pendingLetter holds the letter drawn during the sticks animation,
	// before it becomes CurrentLetter at round start.
	pendingLetter string

	// Phase timer bookkeeping. timerGen is bumped on every phase change
	// (and on reset); a fired timer that observes a different generation
	// is stale and must not act.
	phaseTimer *time.Timer
	timerGen   int

	// Timings are copied from the package constants at creation so tests
	// can shorten them.
	DrawDuration    time.Duration
	RevealDuration  time.Duration
	StopCountdown   time.Duration
	EndCooldown     time.Duration

	// OnEmpty is called (outside the lock) by the connection layer after
	// the last player leaves, typically to delete the room from the store.
	OnEmpty func(code string)

	closed bool
	rng    *rand.Rand

	Mu sync.Mutex
}

// NewRoom builds an empty room with the given code and default settings.
func NewRoom(code string) *Room {
	return &Room{
		Code:           code,
		Players:        make(map[uuid.UUID]*models.Player),
		Settings:       DefaultSettings(),
		Phase:          PhaseLobby,
		UsedLetters:    make(map[string]bool),
		DrawDuration:   DrawAnimationDuration,
		RevealDuration: LetterRevealDuration,
		StopCountdown:  StopCountdownDuration,
		EndCooldown:    EndGameCooldown,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddPlayerUnsafe seats a player. Joining is only possible in the lobby and
// while the room has a free seat; the first player becomes host.
func (r *Room) AddPlayerUnsafe(p *models.Player) error {
	if r.Phase != PhaseLobby {
		return fmt.Errorf("%s", ErrGameStarted)
	}
	if len(r.Players) >= MaxPlayers {
		return fmt.Errorf("%s", ErrRoomFull)
	}
	if len(r.Players) == 0 {
		p.IsHost = true
		p.IsReady = true
		r.HostID = p.ID
	}
	r.Players[p.ID] = p
	r.Seats = append(r.Seats, p.ID)
	log.Infof("Room %s: player %s (%s) joined, %d seated", r.Code, p.ID, p.Nick, len(r.Players))
	return nil
}

// RemovePlayerUnsafe unseats a player and hands the host role to the next
// seat if the host left. Returns true when the room is now empty; the
// caller is responsible for invoking OnEmpty after releasing the lock.
func (r *Room) RemovePlayerUnsafe(playerID uuid.UUID) bool {
	p, ok := r.Players[playerID]
	if !ok {
		return len(r.Players) == 0
	}
	delete(r.Players, playerID)
	for i, id := range r.Seats {
		if id == playerID {
			r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)
			break
		}
	}
	log.Infof("Room %s: player %s (%s) removed, %d seated", r.Code, playerID, p.Nick, len(r.Players))

	if len(r.Players) == 0 {
		return true
	}

	if p.IsHost {
		next := r.Players[r.Seats[0]]
		next.IsHost = true
		next.IsReady = true
		r.HostID = next.ID
		log.Infof("Room %s: host left, %s (%s) is the new host", r.Code, next.ID, next.Nick)
		r.BroadcastAllUnsafe(map[string]interface{}{
			"type":     "host:changed",
			"playerId": next.ID.String(),
			"nick":     next.Nick,
		})
	}
	return false
}

// PlayerBySeat returns the player seated at the given index, or nil.
// Assumes lock is held.
func (r *Room) PlayerBySeat(i int) *models.Player {
	if i < 0 || i >= len(r.Seats) {
		return nil
	}
	return r.Players[r.Seats[i]]
}

// connectedCountUnsafe counts players with a live connection.
func (r *Room) connectedCountUnsafe() int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// allConnectedReadyUnsafe reports whether every connected player is ready.
func (r *Room) allConnectedReadyUnsafe() bool {
	for _, p := range r.Players {
		if p.IsConnected && !p.IsReady {
			return false
		}
	}
	return true
}

// allConnectedSubmittedUnsafe reports whether every connected player has
// submitted answers this round.
func (r *Room) allConnectedSubmittedUnsafe() bool {
	for _, p := range r.Players {
		if p.IsConnected && !p.HasSubmitted {
			return false
		}
	}
	return true
}

// BroadcastAllUnsafe fans an event out to every seated player with a live
// connection, in seat order. Assumes lock is held; the per-connection
// channels keep each client's delivery order equal to production order.
func (r *Room) BroadcastAllUnsafe(msg map[string]interface{}) {
	for _, id := range r.Seats {
		if p := r.Players[id]; p != nil {
			p.Send(msg)
		}
	}
}

// BroadcastOthersUnsafe fans an event out to everyone except one player.
func (r *Room) BroadcastOthersUnsafe(exclude uuid.UUID, msg map[string]interface{}) {
	for _, id := range r.Seats {
		if id == exclude {
			continue
		}
		if p := r.Players[id]; p != nil {
			p.Send(msg)
		}
	}
}

// UpdateSettingsUnsafe merges a partial settings payload. Only valid in the
// lobby; invalid fields are ignored. Returns true if anything changed; a
// valid categories list counts as a change even when it equals the current
// one.
func (r *Room) UpdateSettingsUnsafe(patch map[string]interface{}) bool {
	if r.Phase != PhaseLobby {
		return false
	}
	changed := false
	if v, ok := patch["minTime"].(float64); ok && int(v) >= 0 && r.Settings.MinTime != int(v) {
		r.Settings.MinTime = int(v)
		changed = true
	}
	if v, ok := patch["maxRounds"].(float64); ok && int(v) >= 1 && r.Settings.MaxRounds != int(v) {
		r.Settings.MaxRounds = int(v)
		changed = true
	}
	if v, ok := patch["useBonus"].(bool); ok && r.Settings.UseBonus != v {
		r.Settings.UseBonus = v
		changed = true
	}
	if raw, ok := patch["categories"].([]interface{}); ok {
		cats := make([]string, 0, len(raw))
		for _, c := range raw {
			s, ok := c.(string)
			if !ok || s == "" || len([]rune(s)) > 50 {
				cats = nil
				break
			}
			cats = append(cats, s)
		}
		if len(cats) > 0 {
			r.Settings.Categories = cats
			changed = true
		}
	}
	return changed
}

// ChatUnsafe relays a chat message from a seated player to the whole room,
// truncated to ChatMessageLimit characters.
func (r *Room) ChatUnsafe(sender *models.Player, message string) {
	if message == "" {
		return
	}
	runes := []rune(message)
	if len(runes) > ChatMessageLimit {
		message = string(runes[:ChatMessageLimit])
	}
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "chat:message",
		"playerId": sender.ID.String(),
		"nick":     sender.Nick,
		"message":  message,
		"ts":       time.Now().Unix(),
	})
}

// TypingUnsafe fans a typing indicator out to everyone but the typist.
func (r *Room) TypingUnsafe(sender *models.Player, category string) {
	if r.Phase != PhasePlaying {
		return
	}
	r.BroadcastOthersUnsafe(sender.ID, map[string]interface{}{
		"type":     "player:typing",
		"playerId": sender.ID.String(),
		"nick":     sender.Nick,
		"category": category,
	})
}

// playerPayloadUnsafe builds the public projection of one player. Raw
// answers are never included; scored answers appear via categoryScores,
// which is only populated during results.
func (r *Room) playerPayloadUnsafe(p *models.Player) map[string]interface{} {
	entry := map[string]interface{}{
		"id":           p.ID.String(),
		"nick":         p.Nick,
		"avatarSeed":   p.AvatarSeed,
		"isHost":       p.IsHost,
		"isReady":      p.IsReady,
		"isConnected":  p.IsConnected,
		"hasSubmitted": p.HasSubmitted,
		"roundScore":   p.RoundScore,
		"totalScore":   p.TotalScore,
	}
	if p.CategoryScores != nil {
		entry["categoryScores"] = p.CategoryScores
	}
	return entry
}

// publicStateUnsafe is the shared game-state projection. It excludes
// per-player answers and the used-letter set.
func (r *Room) publicStateUnsafe() map[string]interface{} {
	cats := make(map[string]string, len(r.ActiveCategories))
	for _, c := range r.ActiveCategories {
		cats[c.Key] = c.Name
	}
	state := map[string]interface{}{
		"phase":            string(r.Phase),
		"currentLetter":    r.CurrentLetter,
		"activeCategories": cats,
		"currentRound":     r.CurrentRound,
		"maxRounds":        r.Settings.MaxRounds,
		"stopTimerArmed":   r.StopTimerArmed,
		"allSubmitted":     r.AllSubmitted,
	}
	if r.StoppedBy != "" {
		state["stoppedBy"] = r.StoppedBy
	} else {
		state["stoppedBy"] = nil
	}
	return state
}

// RoomPayloadUnsafe is the full projection broadcast as room:update.
func (r *Room) RoomPayloadUnsafe() map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(r.Seats))
	for _, id := range r.Seats {
		if p := r.Players[id]; p != nil {
			players = append(players, r.playerPayloadUnsafe(p))
		}
	}
	return map[string]interface{}{
		"code":        r.Code,
		"hostId":      r.HostID.String(),
		"players":     players,
		"settings":    r.Settings,
		"publicState": r.publicStateUnsafe(),
	}
}

// BroadcastRoomUpdateUnsafe pushes the current projection to everyone.
// Every mutation of externally visible room state ends with this.
func (r *Room) BroadcastRoomUpdateUnsafe() {
	payload := r.RoomPayloadUnsafe()
	payload["type"] = "room:update"
	r.BroadcastAllUnsafe(payload)
}

// scheduleUnsafe arms the room's phase timer. The callback re-acquires the
// lock and is dropped if the room closed or the timer generation moved on
// (phase changed, room reset) before it fired.
func (r *Room) scheduleUnsafe(d time.Duration, fn func(r *Room)) {
	gen := r.timerGen
	r.phaseTimer = time.AfterFunc(d, func() {
		r.Mu.Lock()
		if r.closed || r.timerGen != gen {
			r.Mu.Unlock()
			return
		}
		fn(r)
		r.Mu.Unlock()
	})
}

// setPhaseUnsafe moves the room to a new phase and invalidates any pending
// phase timer.
func (r *Room) setPhaseUnsafe(p Phase) {
	r.Phase = p
	r.timerGen++
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
}

// Close marks the room dead so in-flight timers become no-ops.
func (r *Room) Close() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.closed = true
	r.timerGen++
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
}

// internal/models/player.go
package models

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CategoryScore is a single scored cell of the results grid: the points the
// scoring pass assigned, whether the answer matched the letter at all, the
// raw answer text, and who toggled the cell off if a peer has done so.
type CategoryScore struct {
	Points        int    `json:"points"`
	IsValid       bool   `json:"isValid"`
	Answer        string `json:"answer"`
	InvalidatedBy string `json:"invalidatedBy,omitempty"`
}

// PlayerConn is a player's live transport binding. Outgoing events are
// pushed onto OutChan and drained by the connection's write pump; Cancel
// cancels the connection's context, which ends its read and write pumps.
// Removing a player from a room does not call it.
type PlayerConn struct {
	PlayerID uuid.UUID
	Cancel   context.CancelFunc
	OutChan  chan map[string]interface{}
}

// Write pushes a message onto the connection's OutChan without blocking.
// Messages to a full channel are dropped and logged. OutChan is never
// closed; a send on a closed channel would panic.
func (c *PlayerConn) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Warnf("PlayerConn %s: OutChan full, dropped message type %q", c.PlayerID, msgType)
	}
}

// WriteError sends an error event of the given type ("room:error" or
// "game:error") carrying a human-readable message.
func (c *PlayerConn) WriteError(eventType, message string) {
	c.Write(map[string]interface{}{
		"type":    eventType,
		"message": message,
	})
}

// Player is a member of a room. The identity fields live as long as the
// player is in the room; the per-round fields are reset at every round
// start and cleared on return to lobby.
type Player struct {
	ID          uuid.UUID
	Nick        string
	AvatarSeed  string
	IsHost      bool
	IsReady     bool
	IsConnected bool

	// SessionToken is the opaque client-provided token this player is
	// reachable under in the session directory.
	SessionToken string

	// Conn is the current transport binding, nil while disconnected.
	Conn *PlayerConn

	// Per-round state.
	Answers        map[string]string
	HasSubmitted   bool
	CategoryScores map[string]*CategoryScore
	RoundScore     int
	TotalScore     int
}

// NewPlayer builds a player with a fresh id and empty round state.
func NewPlayer(nick, avatarSeed, sessionToken string) *Player {
	id, _ := uuid.NewRandom()
	return &Player{
		ID:           id,
		Nick:         nick,
		AvatarSeed:   avatarSeed,
		SessionToken: sessionToken,
		IsConnected:  true,
		Answers:      make(map[string]string),
	}
}

// ResetRound clears the state that only lives for one round.
func (p *Player) ResetRound() {
	p.Answers = make(map[string]string)
	p.HasSubmitted = false
	p.CategoryScores = nil
	p.RoundScore = 0
}

// ResetGame clears everything accumulated over a full game.
func (p *Player) ResetGame() {
	p.ResetRound()
	p.TotalScore = 0
}

// Send writes an event to this player's connection if one is bound.
func (p *Player) Send(msg map[string]interface{}) {
	if p.Conn != nil {
		p.Conn.Write(msg)
	}
}

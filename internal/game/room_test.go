// internal/game/room_test.go
package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gio-lom/kalakoba/internal/models"
)

// newTestPlayer builds a connected player with a buffered out-channel so
// broadcasts can be inspected without a transport.
func newTestPlayer(nick string) *models.Player {
	p := models.NewPlayer(nick, "seed-"+nick, "token-"+nick)
	p.Conn = &models.PlayerConn{
		PlayerID: p.ID,
		OutChan:  make(chan map[string]interface{}, 256),
	}
	return p
}

// newTestRoom seats n connected players in a fresh lobby room with
// millisecond-scale phase timers.
func newTestRoom(t *testing.T, n int) (*Room, []*models.Player) {
	t.Helper()
	r := NewRoom("TESTR")
	r.DrawDuration = 5 * time.Millisecond
	r.RevealDuration = 5 * time.Millisecond
	r.StopCountdown = 10 * time.Millisecond
	r.EndCooldown = 20 * time.Millisecond

	players := make([]*models.Player, n)
	r.Mu.Lock()
	for i := 0; i < n; i++ {
		p := newTestPlayer(fmt.Sprintf("player%d", i))
		require.NoError(t, r.AddPlayerUnsafe(p))
		players[i] = p
	}
	r.Mu.Unlock()
	return r, players
}

// drainEvents empties a player's out-channel.
func drainEvents(p *models.Player) []map[string]interface{} {
	var events []map[string]interface{}
	for {
		select {
		case ev := <-p.Conn.OutChan:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// eventsOfType filters drained events by their type field.
func eventsOfType(events []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, ev := range events {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

// waitFor polls cond under the room lock until it holds or the deadline
// passes.
func waitFor(t *testing.T, r *Room, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.Mu.Lock()
		ok := cond()
		r.Mu.Unlock()
		if ok {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestFirstPlayerBecomesHost(t *testing.T) {
	r, players := newTestRoom(t, 3)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, players[0].ID, r.HostID)
	assert.True(t, players[0].IsHost)
	assert.True(t, players[0].IsReady, "host starts ready")
	assert.False(t, players[1].IsHost)
}

func TestJoinCapacity(t *testing.T) {
	r, _ := newTestRoom(t, MaxPlayers)

	r.Mu.Lock()
	defer r.Mu.Unlock()
	err := r.AddPlayerUnsafe(newTestPlayer("latecomer"))
	require.Error(t, err)
	assert.Equal(t, ErrRoomFull, err.Error())
	assert.Len(t, r.Players, MaxPlayers)
}

func TestJoinOnlyInLobby(t *testing.T) {
	r, players := newTestRoom(t, 2)

	r.Mu.Lock()
	players[1].IsReady = true
	require.True(t, r.StartGameUnsafe(players[0]))
	err := r.AddPlayerUnsafe(newTestPlayer("latecomer"))
	r.Mu.Unlock()

	require.Error(t, err)
	assert.Equal(t, ErrGameStarted, err.Error())
}

func TestHostSuccessionBySeatOrder(t *testing.T) {
	r, players := newTestRoom(t, 3)

	r.Mu.Lock()
	empty := r.RemovePlayerUnsafe(players[0].ID)
	r.Mu.Unlock()

	require.False(t, empty)
	r.Mu.Lock()
	assert.Equal(t, players[1].ID, r.HostID)
	assert.True(t, players[1].IsHost)
	assert.True(t, players[1].IsReady)
	r.Mu.Unlock()

	evs := eventsOfType(drainEvents(players[2]), "host:changed")
	require.Len(t, evs, 1)
	assert.Equal(t, players[1].ID.String(), evs[0]["playerId"])
}

func TestRemoveLastPlayerReportsEmpty(t *testing.T) {
	r, players := newTestRoom(t, 1)

	r.Mu.Lock()
	empty := r.RemovePlayerUnsafe(players[0].ID)
	r.Mu.Unlock()

	assert.True(t, empty)
}

func TestRoomUpdateProjectionExcludesAnswers(t *testing.T) {
	r, players := newTestRoom(t, 2)

	r.Mu.Lock()
	players[0].Answers["cat_0"] = "საიდუმლო"
	r.UsedLetters["ა"] = true
	payload := r.RoomPayloadUnsafe()
	r.Mu.Unlock()

	state, ok := payload["publicState"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, state, "usedLetters")

	for _, entry := range payload["players"].([]map[string]interface{}) {
		assert.NotContains(t, entry, "answers")
		assert.NotContains(t, entry, "sessionToken")
	}
}

func TestChatMessageTruncated(t *testing.T) {
	r, players := newTestRoom(t, 2)

	long := make([]rune, 0, 250)
	for i := 0; i < 250; i++ {
		long = append(long, 'ა')
	}

	r.Mu.Lock()
	r.ChatUnsafe(players[0], string(long))
	r.Mu.Unlock()

	evs := eventsOfType(drainEvents(players[1]), "chat:message")
	require.Len(t, evs, 1)
	msg := evs[0]["message"].(string)
	assert.Len(t, []rune(msg), ChatMessageLimit)
}

func TestTypingFansOutToOthersOnly(t *testing.T) {
	r, players := newTestRoom(t, 3)
	startSingleRound(t, r, players)

	for _, p := range players {
		drainEvents(p)
	}
	r.Mu.Lock()
	r.TypingUnsafe(players[0], "cat_0")
	r.Mu.Unlock()

	assert.Empty(t, eventsOfType(drainEvents(players[0]), "player:typing"))
	evs := eventsOfType(drainEvents(players[1]), "player:typing")
	require.Len(t, evs, 1)
	assert.Equal(t, "cat_0", evs[0]["category"])
}

func TestUpdateSettings(t *testing.T) {
	r, _ := newTestRoom(t, 1)

	r.Mu.Lock()
	defer r.Mu.Unlock()

	changed := r.UpdateSettingsUnsafe(map[string]interface{}{
		"minTime":    float64(0),
		"maxRounds":  float64(3),
		"useBonus":   true,
		"categories": []interface{}{"ქალაქი", "მდინარე"},
	})
	require.True(t, changed)
	assert.Equal(t, 0, r.Settings.MinTime)
	assert.Equal(t, 3, r.Settings.MaxRounds)
	assert.True(t, r.Settings.UseBonus)
	assert.Equal(t, []string{"ქალაქი", "მდინარე"}, r.Settings.Categories)

	// Invalid values leave the settings untouched.
	assert.False(t, r.UpdateSettingsUnsafe(map[string]interface{}{"maxRounds": float64(0)}))
	assert.Equal(t, 3, r.Settings.MaxRounds)
	assert.False(t, r.UpdateSettingsUnsafe(map[string]interface{}{"categories": []interface{}{""}}))
	assert.Equal(t, []string{"ქალაქი", "მდინარე"}, r.Settings.Categories)
}

func TestUpdateSettingsRejectedOutsideLobby(t *testing.T) {
	r, players := newTestRoom(t, 2)

	r.Mu.Lock()
	players[1].IsReady = true
	require.True(t, r.StartGameUnsafe(players[0]))
	changed := r.UpdateSettingsUnsafe(map[string]interface{}{"maxRounds": float64(2)})
	r.Mu.Unlock()

	assert.False(t, changed)
}

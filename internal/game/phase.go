// internal/game/phase.go
package game

import (
	"time"

	"github.com/gio-lom/kalakoba/internal/models"
)

// StartGameUnsafe moves the room from lobby into the sticks phase. Guards:
// at least one player, every connected player ready. Guard failures are
// reported to the acting player only.
func (r *Room) StartGameUnsafe(actor *models.Player) bool {
	if r.Phase != PhaseLobby {
		actor.Send(gameError(ErrGameStarted))
		return false
	}
	if len(r.Players) < 1 || !r.allConnectedReadyUnsafe() {
		actor.Send(gameError(ErrNotAllReady))
		return false
	}

	r.UsedLetters = make(map[string]bool)
	r.CurrentRound = 0
	for _, p := range r.Players {
		p.ResetGame()
	}
	r.setPhaseUnsafe(PhaseSticks)
	r.BroadcastRoomUpdateUnsafe()
	return true
}

// DrawSticksUnsafe selects the round letter and runs the animated reveal:
// sticks:drawing for DrawDuration, then sticks:result, then after
// RevealDuration the room enters playing.
func (r *Room) DrawSticksUnsafe(actor *models.Player) bool {
	if r.Phase != PhaseSticks {
		actor.Send(gameError(ErrGameStarted))
		return false
	}
	if r.pendingLetter != "" {
		// A draw is already animating.
		return false
	}

	r.pendingLetter = r.drawLetterUnsafe()
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "sticks:drawing",
		"duration": r.DrawDuration.Milliseconds(),
	})
	r.scheduleUnsafe(r.DrawDuration, func(r *Room) {
		r.BroadcastAllUnsafe(map[string]interface{}{
			"type":   "sticks:result",
			"letter": r.pendingLetter,
		})
		r.scheduleUnsafe(r.RevealDuration, func(r *Room) {
			r.beginPlayingUnsafe()
		})
	})
	return true
}

// beginPlayingUnsafe starts the round proper: bumps the round counter,
// clears per-player round state, assembles categories and arms the
// min-time lock.
func (r *Room) beginPlayingUnsafe() {
	r.setPhaseUnsafe(PhasePlaying)
	r.CurrentRound++
	r.CurrentLetter = r.pendingLetter
	r.pendingLetter = ""
	r.StoppedBy = ""
	r.StopTimerArmed = false
	r.AllSubmitted = false
	for _, p := range r.Players {
		p.ResetRound()
	}
	r.assembleCategoriesUnsafe()

	cats := make(map[string]string, len(r.ActiveCategories))
	for _, c := range r.ActiveCategories {
		cats[c.Key] = c.Name
	}
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":       "round:start",
		"round":      r.CurrentRound,
		"letter":     r.CurrentLetter,
		"categories": cats,
		"minTime":    r.Settings.MinTime,
	})
	r.BroadcastRoomUpdateUnsafe()

	if r.Settings.MinTime <= 0 {
		r.armStopUnsafe()
		return
	}
	r.scheduleUnsafe(time.Duration(r.Settings.MinTime)*time.Second, func(r *Room) {
		if r.Phase == PhasePlaying {
			r.armStopUnsafe()
		}
	})
}

// armStopUnsafe lifts the min-time lock so any player may stop the round.
func (r *Room) armStopUnsafe() {
	r.StopTimerArmed = true
	r.BroadcastAllUnsafe(map[string]interface{}{"type": "stop:enabled"})
}

// SubmitAnswersUnsafe records a player's answers for the active categories.
// Accepted while the round is running and during the stop countdown.
// The advisory all:submitted broadcast fires when the last connected player
// submits; it does not end the round.
func (r *Room) SubmitAnswersUnsafe(p *models.Player, answers map[string]string) bool {
	if r.Phase != PhasePlaying && r.Phase != PhaseStopped {
		return false
	}
	for _, cat := range r.ActiveCategories {
		if v, ok := answers[cat.Key]; ok {
			p.Answers[cat.Key] = v
		}
	}
	p.HasSubmitted = true

	if r.Phase == PhasePlaying && !r.AllSubmitted && r.allConnectedSubmittedUnsafe() {
		r.AllSubmitted = true
		r.BroadcastAllUnsafe(map[string]interface{}{"type": "all:submitted"})
	}
	r.BroadcastRoomUpdateUnsafe()
	return true
}

// StopRoundUnsafe handles round:stop from any player. Before the min-time
// lock lifts the attempt is rejected; afterwards the room enters stopped
// and the round ends when the countdown expires.
func (r *Room) StopRoundUnsafe(actor *models.Player) bool {
	if r.Phase != PhasePlaying {
		return false
	}
	if !r.StopTimerArmed {
		actor.Send(gameError(ErrWaitForStop))
		return false
	}

	r.setPhaseUnsafe(PhaseStopped)
	r.StoppedBy = actor.Nick
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":      "round:stopped",
		"countdown": int(r.StopCountdown.Seconds()),
		"stoppedBy": actor.Nick,
	})
	r.BroadcastRoomUpdateUnsafe()
	r.scheduleUnsafe(r.StopCountdown, func(r *Room) {
		r.finishRoundUnsafe()
	})
	return true
}

// finishRoundUnsafe runs the scoring pass and publishes results.
func (r *Room) finishRoundUnsafe() {
	r.scoreRoundUnsafe()
	r.setPhaseUnsafe(PhaseResults)
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":        "round:results",
		"round":       r.CurrentRound,
		"letter":      r.CurrentLetter,
		"results":     r.resultsPayloadUnsafe(),
		"isLastRound": r.CurrentRound >= r.Settings.MaxRounds,
	})
	r.BroadcastRoomUpdateUnsafe()
}

// NextRoundUnsafe advances from results to the next draw, or to the end of
// the game after the final round.
func (r *Room) NextRoundUnsafe(actor *models.Player) bool {
	if r.Phase != PhaseResults {
		return false
	}

	if r.CurrentRound >= r.Settings.MaxRounds {
		r.endGameUnsafe()
		return true
	}

	r.setPhaseUnsafe(PhaseSticks)
	r.CurrentLetter = ""
	r.StoppedBy = ""
	r.StopTimerArmed = false
	r.AllSubmitted = false
	r.ActiveCategories = nil
	for _, p := range r.Players {
		p.ResetRound()
	}
	r.BroadcastAllUnsafe(map[string]interface{}{"type": "phase:sticks"})
	r.BroadcastRoomUpdateUnsafe()
	return true
}

// endGameUnsafe computes final standings and schedules the automatic
// return to lobby.
func (r *Room) endGameUnsafe() {
	r.setPhaseUnsafe(PhaseEnded)
	r.CurrentLetter = ""
	for _, p := range r.Players {
		p.CategoryScores = nil
	}
	r.BroadcastAllUnsafe(map[string]interface{}{
		"type":      "game:ended",
		"standings": r.standingsUnsafe(),
	})
	r.BroadcastRoomUpdateUnsafe()
	r.scheduleUnsafe(r.EndCooldown, func(r *Room) {
		r.resetToLobbyUnsafe()
	})
}

// ReturnToLobbyUnsafe handles the host's game:returnToLobby from results or
// the end screen.
func (r *Room) ReturnToLobbyUnsafe(actor *models.Player) bool {
	if r.Phase != PhaseResults && r.Phase != PhaseEnded {
		return false
	}
	r.resetToLobbyUnsafe()
	return true
}

// resetToLobbyUnsafe wipes all game state: round counter, used letters,
// per-player scores and answers. Readiness is kept only for the host.
func (r *Room) resetToLobbyUnsafe() {
	r.setPhaseUnsafe(PhaseLobby)
	r.CurrentRound = 0
	r.UsedLetters = make(map[string]bool)
	r.CurrentLetter = ""
	r.pendingLetter = ""
	r.StoppedBy = ""
	r.StopTimerArmed = false
	r.AllSubmitted = false
	r.ActiveCategories = nil
	for _, p := range r.Players {
		p.ResetGame()
		p.IsReady = p.IsHost
	}
	r.BroadcastAllUnsafe(map[string]interface{}{"type": "game:reset"})
	r.BroadcastRoomUpdateUnsafe()
}

func gameError(message string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "game:error",
		"message": message,
	}
}

// internal/game/round.go
package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gio-lom/kalakoba/internal/models"
)

const (
	pointsUnique     = 20
	pointsDuplicated = 10
)

// drawLetterUnsafe picks a round letter uniformly from the letters not yet
// used this game. When the whole alphabet has been used the set is cleared
// and the draw runs over all 33 letters again.
func (r *Room) drawLetterUnsafe() string {
	candidates := make([]string, 0, len(Alphabet))
	for _, l := range Alphabet {
		if !r.UsedLetters[l] {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		r.UsedLetters = make(map[string]bool)
		candidates = append(candidates, Alphabet...)
	}
	letter := candidates[r.rng.Intn(len(candidates))]
	r.UsedLetters[letter] = true
	return letter
}

// assembleCategoriesUnsafe builds the round's category list from the room
// settings, keyed cat_0…cat_n in order, plus a random bonus entry when the
// bonus setting is on. The keys stay stable for the whole round and are the
// identifiers used in answer and score messages.
func (r *Room) assembleCategoriesUnsafe() {
	entries := make([]CategoryEntry, 0, len(r.Settings.Categories)+1)
	for i, name := range r.Settings.Categories {
		entries = append(entries, CategoryEntry{Key: fmt.Sprintf("cat_%d", i), Name: name})
	}
	if r.Settings.UseBonus {
		bonus := BonusCategories[r.rng.Intn(len(BonusCategories))]
		entries = append(entries, CategoryEntry{Key: "bonus", Name: bonus})
	}
	r.ActiveCategories = entries
}

// normalizeAnswer is the canonical form used for letter matching and
// duplicate detection.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// scoreRoundUnsafe runs the deterministic scoring pass over every player
// and category. An empty answer or one not starting with the round letter
// scores 0 and is invalid; a valid unique answer scores 20; an answer
// shared (after normalization) with at least one other player scores 10.
func (r *Room) scoreRoundUnsafe() {
	letter := strings.ToLower(r.CurrentLetter)

	for _, cat := range r.ActiveCategories {
		// Count normalized valid answers so duplicates can be detected.
		counts := make(map[string]int)
		for _, id := range r.Seats {
			p := r.Players[id]
			a := normalizeAnswer(p.Answers[cat.Key])
			if a != "" && strings.HasPrefix(a, letter) {
				counts[a]++
			}
		}

		for _, id := range r.Seats {
			p := r.Players[id]
			if p.CategoryScores == nil {
				p.CategoryScores = make(map[string]*models.CategoryScore)
			}
			raw := p.Answers[cat.Key]
			a := normalizeAnswer(raw)

			score := &models.CategoryScore{Answer: raw}
			if a == "" || !strings.HasPrefix(a, letter) {
				score.Points = 0
				score.IsValid = false
			} else {
				score.IsValid = true
				if counts[a] > 1 {
					score.Points = pointsDuplicated
				} else {
					score.Points = pointsUnique
				}
			}
			p.CategoryScores[cat.Key] = score
		}
	}

	for _, p := range r.Players {
		round := 0
		for _, s := range p.CategoryScores {
			round += s.Points
		}
		p.RoundScore = round
		p.TotalScore += round
	}
}

// ToggleInvalidationUnsafe flips the validity of one scored cell during
// results. Invalidation subtracts the cached scoring-pass points from the
// target's round and total scores; re-validation adds them back. The points
// value is never recomputed, so a toggle round-trip is exact.
func (r *Room) ToggleInvalidationUnsafe(toggler *models.Player, targetID uuid.UUID, categoryKey string) bool {
	if r.Phase != PhaseResults {
		return false
	}
	target, ok := r.Players[targetID]
	if !ok || target.CategoryScores == nil {
		return false
	}
	score, ok := target.CategoryScores[categoryKey]
	if !ok {
		return false
	}

	if score.InvalidatedBy == "" {
		score.InvalidatedBy = toggler.ID.String()
		target.RoundScore -= score.Points
		target.TotalScore -= score.Points
	} else {
		score.InvalidatedBy = ""
		target.RoundScore += score.Points
		target.TotalScore += score.Points
	}
	return true
}

// standingsUnsafe computes the final placements: total score descending,
// ties kept in seat order.
func (r *Room) standingsUnsafe() []map[string]interface{} {
	ordered := make([]*models.Player, 0, len(r.Seats))
	for _, id := range r.Seats {
		if p := r.Players[id]; p != nil {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TotalScore > ordered[j].TotalScore
	})

	standings := make([]map[string]interface{}, 0, len(ordered))
	for i, p := range ordered {
		standings = append(standings, map[string]interface{}{
			"place":      i + 1,
			"playerId":   p.ID.String(),
			"nick":       p.Nick,
			"avatarSeed": p.AvatarSeed,
			"totalScore": p.TotalScore,
		})
	}
	return standings
}

// resultsPayloadUnsafe builds the per-player portion of round:results.
func (r *Room) resultsPayloadUnsafe() map[string]interface{} {
	results := make(map[string]interface{}, len(r.Players))
	for _, id := range r.Seats {
		p := r.Players[id]
		if p == nil {
			continue
		}
		results[p.ID.String()] = map[string]interface{}{
			"nick":           p.Nick,
			"categoryScores": p.CategoryScores,
			"roundScore":     p.RoundScore,
			"totalScore":     p.TotalScore,
		}
	}
	return results
}

// internal/models/build.go
package models

import "github.com/google/uuid"

// Build is a table combination declared to be captured later at exactly
// Value. Builds are addressed by ID only: capture removes the referenced
// build and nothing else, never a value-matched scan of the table.
type Build struct {
	ID              string    `json:"id"`
	Cards           []Card    `json:"cards"`
	Value           int       `json:"value"`
	BuilderPlayerID uuid.UUID `json:"builder_player_id"`

	// CapturableBy lists the players currently holding a card able to take
	// this build. Recomputed after every accepted mutation; an empty set at
	// creation time means the build is dead and the action is rejected.
	CapturableBy []uuid.UUID `json:"capturable_by"`
}

// AchievableAs reports whether value is reachable as a sum of admissible
// values over the build's cards, trying both values for every Ace involved.
func (b Build) AchievableAs(value int) bool {
	return SumAchievable(b.Cards, value)
}

// SumAchievable checks whether the cards can sum to exactly target under
// some admissible-value assignment. Bounded: at most 2 choices per Ace.
func SumAchievable(cards []Card, target int) bool {
	if len(cards) == 0 {
		return target == 0
	}
	for _, v := range cards[0].AdmissibleValues() {
		if v <= target && SumAchievable(cards[1:], target-v) {
			return true
		}
	}
	return false
}

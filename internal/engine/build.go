// internal/engine/build.go
package engine

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/models"
)

// applyBuild creates a new build or extends an existing one. Rules:
//
//   - the declared value must be achievable: played card + consumed table
//     cards (+ the extended build's value) under some Ace assignment;
//   - the actor must still hold, after playing, a card able to capture the
//     declared value, otherwise the build is dead and rejected;
//   - nothing is ever captured as a by-product: the action consumes only
//     the cards it names, no value-matched table scan happens here.
//
// Extending re-assigns the build to the current actor.
func (e *Engine) applyBuild(st *models.RoomState, playerID uuid.UUID, act models.BuildAction) error {
	played, ok := findInHand(st, playerID, act.HandCardID)
	if !ok {
		return reject(RejectUnknownCard, "card %s is not in your hand", act.HandCardID)
	}
	if len(act.ConsumedTableCardIDs) == 0 && act.TargetBuildID == "" {
		return reject(RejectInvalidBuild,
			"a build must combine the played card with table cards or an existing build")
	}

	consumed := make([]models.Card, 0, len(act.ConsumedTableCardIDs))
	seen := make(map[string]bool, len(act.ConsumedTableCardIDs))
	for _, id := range act.ConsumedTableCardIDs {
		if seen[id] {
			return reject(RejectInvalidBuild, "card %s consumed twice", id)
		}
		seen[id] = true
		c, ok := findTableCard(st, id)
		if !ok {
			return reject(RejectUnknownCard, "card %s is not on the table", id)
		}
		consumed = append(consumed, c)
	}

	base := 0
	var extended models.Build
	if act.TargetBuildID != "" {
		b, ok := findBuild(st, act.TargetBuildID)
		if !ok {
			return reject(RejectUnknownCard, "build %s is not on the table", act.TargetBuildID)
		}
		extended = b
		base = b.Value
	}

	summed := append(append([]models.Card(nil), consumed...), played)
	if act.BuildValue <= base || !models.SumAchievable(summed, act.BuildValue-base) {
		return reject(RejectInvalidBuild,
			"value %d is not achievable from the selected cards", act.BuildValue)
	}

	// Dead-build check: the actor must keep a card that can take the build.
	if !holdsCaptureFor(st, playerID, played.ID, act.BuildValue) {
		return reject(RejectDeadBuild,
			"you would hold no card able to capture a %d build", act.BuildValue)
	}

	removeFromHand(st, playerID, played.ID)
	removeTableCards(st, act.ConsumedTableCardIDs)

	cards := []models.Card{played}
	cards = append(cards, consumed...)
	id := ""
	if act.TargetBuildID != "" {
		// An extended build keeps its identity; only value, cards, and
		// builder change.
		cards = append(cards, extended.Cards...)
		removeBuild(st, extended.ID)
		id = extended.ID
	} else {
		id = buildID(st)
	}
	st.Builds = append(st.Builds, models.Build{
		ID:              id,
		Cards:           cards,
		Value:           act.BuildValue,
		BuilderPlayerID: playerID,
	})
	return nil
}

// holdsCaptureFor reports whether the player still holds, excluding the
// played card, a card whose admissible values include value.
func holdsCaptureFor(st *models.RoomState, playerID uuid.UUID, playedID string, value int) bool {
	hand := st.HandOf(playerID)
	if hand == nil {
		return false
	}
	for _, c := range *hand {
		if c.ID != playedID && c.CanTake(value) {
			return true
		}
	}
	return false
}

func removeTableCards(st *models.RoomState, ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := st.TableCards[:0]
	for _, c := range st.TableCards {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	st.TableCards = kept
}

func removeBuild(st *models.RoomState, id string) {
	kept := st.Builds[:0]
	for _, b := range st.Builds {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	st.Builds = kept
}

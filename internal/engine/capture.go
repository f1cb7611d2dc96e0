// internal/engine/capture.go
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/models"
)

// applyCapture validates a capture and, if legal, removes exactly the
// referenced builds and table cards. The played card resolves to a single
// value v for the whole action; table Aces in the target set choose their
// value per group. Builds are matched by ID only — the surviving build set
// is always allBuilds minus the targeted IDs, never a value-matched rescan.
func (e *Engine) applyCapture(st *models.RoomState, playerID uuid.UUID, act models.Capture) error {
	played, ok := findInHand(st, playerID, act.HandCardID)
	if !ok {
		return reject(RejectUnknownCard, "card %s is not in your hand", act.HandCardID)
	}
	if len(act.TargetBuildIDs) == 0 && len(act.TargetTableCardIDs) == 0 {
		return reject(RejectInvalidCaptureSum, "capture requires at least one target")
	}

	targetBuilds := make(map[string]models.Build, len(act.TargetBuildIDs))
	for _, id := range act.TargetBuildIDs {
		if _, dup := targetBuilds[id]; dup {
			return reject(RejectInvalidCaptureSum, "build %s targeted twice", id)
		}
		b, ok := findBuild(st, id)
		if !ok {
			return reject(RejectUnknownCard, "build %s is not on the table", id)
		}
		targetBuilds[id] = b
	}
	targetCards := make([]models.Card, 0, len(act.TargetTableCardIDs))
	seen := make(map[string]bool, len(act.TargetTableCardIDs))
	for _, id := range act.TargetTableCardIDs {
		if seen[id] {
			return reject(RejectInvalidCaptureSum, "card %s targeted twice", id)
		}
		seen[id] = true
		c, ok := findTableCard(st, id)
		if !ok {
			return reject(RejectUnknownCard, "card %s is not on the table", id)
		}
		targetCards = append(targetCards, c)
	}

	// Pick the single value the played card resolves to for this action.
	matched := -1
	for _, v := range played.AdmissibleValues() {
		if captureMatches(targetBuilds, targetCards, v) {
			matched = v
			break
		}
	}
	if matched == -1 {
		return reject(RejectInvalidCaptureSum,
			"targets do not sum to any playable value of %s", played.ID)
	}

	// Apply. Everything referenced moves to the capture pile along with the
	// played card; everything unreferenced stays exactly where it was.
	removeFromHand(st, playerID, played.ID)
	pile := st.CapturedOf(playerID)
	*pile = append(*pile, played)

	kept := st.Builds[:0]
	for _, b := range st.Builds {
		if _, targeted := targetBuilds[b.ID]; targeted {
			*pile = append(*pile, b.Cards...)
		} else {
			kept = append(kept, b)
		}
	}
	st.Builds = kept

	targeted := make(map[string]bool, len(targetCards))
	for _, c := range targetCards {
		targeted[c.ID] = true
	}
	keptCards := st.TableCards[:0]
	for _, c := range st.TableCards {
		if targeted[c.ID] {
			*pile = append(*pile, c)
		} else {
			keptCards = append(keptCards, c)
		}
	}
	st.TableCards = keptCards

	st.LastCapturer = playerID
	return nil
}

// applyTrail places the hand card on the table. Under strict trailing it
// is only legal when no capture was available for that card.
func (e *Engine) applyTrail(st *models.RoomState, playerID uuid.UUID, act models.Trail) error {
	played, ok := findInHand(st, playerID, act.HandCardID)
	if !ok {
		return reject(RejectUnknownCard, "card %s is not in your hand", act.HandCardID)
	}
	if e.Rules.StrictTrailing && captureAvailable(st, played) {
		return reject(RejectDeadCardRequired, "a capture is available for %s", played.ID)
	}
	removeFromHand(st, playerID, played.ID)
	st.TableCards = append(st.TableCards, played)
	return nil
}

// captureMatches reports whether every targeted build equals v and the
// targeted table cards partition into groups each summing to v.
func captureMatches(builds map[string]models.Build, cards []models.Card, v int) bool {
	for _, b := range builds {
		if b.Value != v {
			return false
		}
	}
	return partitionable(cards, v)
}

// partitionable checks that the cards split into disjoint groups that each
// sum to v, trying both values for every Ace. Target sets are small, so
// exhaustive subset enumeration is fine.
func partitionable(cards []models.Card, v int) bool {
	if len(cards) == 0 {
		return true
	}
	first, rest := cards[0], cards[1:]
	for mask := 0; mask < 1<<len(rest); mask++ {
		group := []models.Card{first}
		var remaining []models.Card
		for i, c := range rest {
			if mask&(1<<i) != 0 {
				group = append(group, c)
			} else {
				remaining = append(remaining, c)
			}
		}
		if models.SumAchievable(group, v) && partitionable(remaining, v) {
			return true
		}
	}
	return false
}

// captureAvailable reports whether the played card could capture anything
// on the current table: a build at one of its values, or any subset of
// loose table cards summing to one.
func captureAvailable(st *models.RoomState, played models.Card) bool {
	for _, v := range played.AdmissibleValues() {
		for _, b := range st.Builds {
			if b.Value == v {
				return true
			}
		}
		if subsetSumExists(st.TableCards, v) {
			return true
		}
	}
	return false
}

// subsetSumExists reports whether any nonempty subset of cards can sum to
// v under some admissible-value assignment. Simple reachable-sum sweep.
func subsetSumExists(cards []models.Card, v int) bool {
	reachable := map[int]bool{0: true}
	for _, c := range cards {
		next := make(map[int]bool, len(reachable)*2)
		for s := range reachable {
			next[s] = true
			for _, cv := range c.AdmissibleValues() {
				if s+cv <= v {
					next[s+cv] = true
				}
			}
		}
		reachable = next
	}
	return v > 0 && reachable[v]
}

func findBuild(st *models.RoomState, id string) (models.Build, bool) {
	for _, b := range st.Builds {
		if b.ID == id {
			return b, true
		}
	}
	return models.Build{}, false
}

func findTableCard(st *models.RoomState, id string) (models.Card, bool) {
	for _, c := range st.TableCards {
		if c.ID == id {
			return c, true
		}
	}
	return models.Card{}, false
}

// buildID mints the next build identifier for the room.
func buildID(st *models.RoomState) string {
	st.BuildSeq++
	return fmt.Sprintf("%s%d", models.BuildIDPrefix, st.BuildSeq)
}

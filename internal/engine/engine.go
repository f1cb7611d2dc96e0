// internal/engine/engine.go
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/models"
)

// Rules is the per-room rule configuration.
type Rules struct {
	// StrictTrailing rejects a trail with DeadCardRequired whenever the
	// played card could have captured. Off by default.
	StrictTrailing bool

	// ShuffleSeed pins the deal. Zero means time-seeded.
	ShuffleSeed int64
}

// WinningScore ends the game once a round closes with one player ahead at
// or beyond it.
const WinningScore = 11

// Engine validates and applies moves against a RoomState. It is a pure
// in-memory rule machine: no I/O, no blocking, no locking. Callers are
// responsible for serializing access to the state (the room does this).
type Engine struct {
	Rules Rules
}

func New(rules Rules) *Engine {
	return &Engine{Rules: rules}
}

// SetReady flips a seated player's ready flag. When both players are
// ready the room shuffles, deals, and enters round 1 in the same accepted
// mutation, so the waiting→dealer→round1 transition fires exactly once no
// matter which flag flips last.
func (e *Engine) SetReady(st *models.RoomState, playerID uuid.UUID, ready bool) error {
	if st.Phase != models.PhaseWaiting {
		return reject(RejectWrongPhase, "room is not waiting for ready players")
	}
	switch st.Seat(playerID) {
	case 1:
		st.Player1Ready = ready
	case 2:
		st.Player2Ready = ready
	default:
		return reject(RejectUnknownCard, "player %s is not seated in this room", playerID)
	}
	if st.Player1Ready && st.Player2Ready {
		e.startRound(st, 1)
	}
	return e.checkConservation(st)
}

// ValidateAndApply validates the action for the acting player and mutates
// the state only if every rule passes. On rejection the state is unchanged.
func (e *Engine) ValidateAndApply(st *models.RoomState, playerID uuid.UUID, action models.Action) error {
	if st.Phase != models.PhaseRound1 && st.Phase != models.PhaseRound2 {
		return reject(RejectWrongPhase, "no round in progress")
	}
	if playerID != st.CurrentTurn {
		return reject(RejectNotYourTurn, "it is not your turn")
	}

	var err error
	switch a := action.(type) {
	case models.Capture:
		err = e.applyCapture(st, playerID, a)
	case models.BuildAction:
		err = e.applyBuild(st, playerID, a)
	case models.Trail:
		err = e.applyTrail(st, playerID, a)
	default:
		err = reject(RejectUnknownCard, "unsupported action")
	}
	if err != nil {
		return err
	}

	recomputeCapturability(st)
	e.advanceAfterAction(st, playerID)
	return e.checkConservation(st)
}

// startRound resets every card zone from a fresh shuffled deck and deals.
// Cumulative scores and the build sequence survive across rounds.
func (e *Engine) startRound(st *models.RoomState, round int) {
	st.Phase = models.PhaseDealer
	st.Round = round

	seed := e.Rules.ShuffleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	st.Deck = shuffledDeck(seed + int64(round))
	st.Player1Hand = nil
	st.Player2Hand = nil
	st.TableCards = nil
	st.Builds = nil
	st.Player1Captured = nil
	st.Player2Captured = nil
	st.LastCapturer = uuid.Nil
	dealOpening(st)

	// Lead alternates by round: player 1 opens odd rounds.
	if round%2 == 1 {
		st.CurrentTurn = st.Player1ID
	} else {
		st.CurrentTurn = st.Player2ID
	}
	if round == 1 {
		st.Phase = models.PhaseRound1
	} else {
		st.Phase = models.PhaseRound2
	}
}

// advanceAfterAction toggles the turn and handles hand exhaustion: a
// sub-deal while the deck holds cards, round scoring once it is empty.
func (e *Engine) advanceAfterAction(st *models.RoomState, actor uuid.UUID) {
	st.CurrentTurn = st.Opponent(actor)

	if len(st.Player1Hand) > 0 || len(st.Player2Hand) > 0 {
		return
	}
	if len(st.Deck) > 0 {
		subDeal(st)
		return
	}
	e.finishRound(st)
}

// finishRound sweeps the table to the last capturer, scores the round, and
// either ends the game or starts the next round.
func (e *Engine) finishRound(st *models.RoomState) {
	if pile := st.CapturedOf(st.LastCapturer); pile != nil {
		*pile = append(*pile, st.TableCards...)
		st.TableCards = nil
		for _, b := range st.Builds {
			*pile = append(*pile, b.Cards...)
		}
		st.Builds = nil
	}

	p1, p2 := ScoreRound(st.Player1Captured, st.Player2Captured)
	st.Player1Score += p1
	st.Player2Score += p2

	reached := st.Player1Score >= WinningScore || st.Player2Score >= WinningScore
	if reached && st.Player1Score != st.Player2Score {
		st.Phase = models.PhaseFinished
		st.CurrentTurn = uuid.Nil
		return
	}
	// No winner yet, or an exact tie at the line: play another round.
	e.startRound(st, st.Round+1)
}

// Winner returns the winning player once the game is finished.
func Winner(st *models.RoomState) uuid.UUID {
	if st.Phase != models.PhaseFinished {
		return uuid.Nil
	}
	if st.Player1Score > st.Player2Score {
		return st.Player1ID
	}
	return st.Player2ID
}

// recomputeCapturability refreshes every build's CapturableBy set from the
// current hands. An empty set marks a dead build, which can only arise
// transiently here because build creation rejects it up front.
func recomputeCapturability(st *models.RoomState) {
	for i := range st.Builds {
		var holders []uuid.UUID
		for _, pid := range []uuid.UUID{st.Player1ID, st.Player2ID} {
			hand := st.HandOf(pid)
			if hand == nil {
				continue
			}
			for _, c := range *hand {
				if c.CanTake(st.Builds[i].Value) {
					holders = append(holders, pid)
					break
				}
			}
		}
		st.Builds[i].CapturableBy = holders
	}
}

// checkConservation verifies the 52-card total. A breach is fatal to the
// room, never silently continued.
func (e *Engine) checkConservation(st *models.RoomState) error {
	if n := st.CardCount(); n != models.DeckSize {
		return &InvariantError{Detail: fmt.Sprintf("card count %d != %d", n, models.DeckSize)}
	}
	return nil
}

// removeFromHand takes cardID out of the player's hand, returning the card.
func removeFromHand(st *models.RoomState, playerID uuid.UUID, cardID string) (models.Card, bool) {
	hand := st.HandOf(playerID)
	if hand == nil {
		return models.Card{}, false
	}
	for i, c := range *hand {
		if c.ID == cardID {
			*hand = append((*hand)[:i], (*hand)[i+1:]...)
			return c, true
		}
	}
	return models.Card{}, false
}

// findInHand looks a card up without removing it.
func findInHand(st *models.RoomState, playerID uuid.UUID, cardID string) (models.Card, bool) {
	hand := st.HandOf(playerID)
	if hand == nil {
		return models.Card{}, false
	}
	for _, c := range *hand {
		if c.ID == cardID {
			return c, true
		}
	}
	return models.Card{}, false
}

// internal/engine/engine_test.go
package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/cassino/internal/models"
)

// takeByID pulls the named cards out of the deck slice, preserving order.
func takeByID(deck *[]models.Card, ids ...string) []models.Card {
	var out []models.Card
	for _, id := range ids {
		for i, c := range *deck {
			if c.ID == id {
				out = append(out, c)
				*deck = append((*deck)[:i], (*deck)[i+1:]...)
				break
			}
		}
	}
	return out
}

// newRoundState builds a mid-round state with exactly the named cards in
// hands and on the table; everything else stays in the deck so the 52-card
// invariant holds.
func newRoundState(t *testing.T, p1, p2 uuid.UUID, p1Hand, p2Hand, table []string) *models.RoomState {
	t.Helper()
	st := models.NewRoomState(uuid.New())
	st.Player1ID = p1
	st.Player2ID = p2
	st.Phase = models.PhaseRound1
	st.Round = 1
	st.CurrentTurn = p1

	st.Player1Hand = takeByID(&st.Deck, p1Hand...)
	st.Player2Hand = takeByID(&st.Deck, p2Hand...)
	st.TableCards = takeByID(&st.Deck, table...)
	require.Len(t, st.Player1Hand, len(p1Hand))
	require.Len(t, st.Player2Hand, len(p2Hand))
	require.Len(t, st.TableCards, len(table))
	require.Equal(t, models.DeckSize, st.CardCount())
	return st
}

func rejectionCode(t *testing.T, err error) RejectionCode {
	t.Helper()
	rej, ok := err.(*Rejection)
	require.True(t, ok, "expected a Rejection, got %v", err)
	return rej.Code
}

func TestReadyBothDealsRoundOne(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	e := New(Rules{ShuffleSeed: 42})
	st := models.NewRoomState(uuid.New())
	st.Player1ID, st.Player2ID = p1, p2

	require.NoError(t, e.SetReady(st, p1, true))
	assert.Equal(t, models.PhaseWaiting, st.Phase, "one ready player must not start the round")

	require.NoError(t, e.SetReady(st, p2, true))
	assert.Equal(t, models.PhaseRound1, st.Phase)
	assert.Equal(t, 1, st.Round)
	assert.Len(t, st.Player1Hand, HandSize)
	assert.Len(t, st.Player2Hand, HandSize)
	assert.Len(t, st.TableCards, TableDeal)
	assert.Len(t, st.Deck, 24)
	assert.Equal(t, p1, st.CurrentTurn, "player 1 leads round 1")
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestSetReadyRejectedOutsideWaiting(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"2C"}, []string{"3C"}, nil)
	err := New(Rules{}).SetReady(st, p1, true)
	assert.Equal(t, RejectWrongPhase, rejectionCode(t, err))
}

func TestCaptureSingleMatch(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"8S", "2C"}, []string{"3C", "4C"}, []string{"8D"})
	e := New(Rules{})

	err := e.ValidateAndApply(st, p1, models.Capture{
		HandCardID:         "8S",
		TargetTableCardIDs: []string{"8D"},
	})
	require.NoError(t, err)

	assert.Len(t, st.Player1Captured, 2)
	assert.Empty(t, st.TableCards)
	assert.Equal(t, p1, st.LastCapturer)
	assert.Equal(t, p2, st.CurrentTurn)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestCapturePartitionsIntoGroups(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"10S", "2C"}, []string{"3H", "4H"},
		[]string{"6S", "4D", "7H", "3C"})
	e := New(Rules{})

	// {6,4} and {7,3} each sum to 10.
	err := e.ValidateAndApply(st, p1, models.Capture{
		HandCardID:         "10S",
		TargetTableCardIDs: []string{"6S", "4D", "7H", "3C"},
	})
	require.NoError(t, err)
	assert.Len(t, st.Player1Captured, 5)
	assert.Empty(t, st.TableCards)
}

func TestCaptureRejectsUnreachableSum(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"9S", "2C"}, []string{"3H"}, []string{"6S", "4D"})
	e := New(Rules{})

	err := e.ValidateAndApply(st, p1, models.Capture{
		HandCardID:         "9S",
		TargetTableCardIDs: []string{"6S", "4D"},
	})
	assert.Equal(t, RejectInvalidCaptureSum, rejectionCode(t, err))
	assert.Len(t, st.TableCards, 2, "rejected action must leave state untouched")
	assert.Len(t, st.Player1Hand, 2)
	assert.Equal(t, p1, st.CurrentTurn)
}

func TestCaptureRejectsRepeatedTargets(t *testing.T) {
	// Naming the lone 5 twice must not let a 10 take it.
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"10S", "2C"}, []string{"3H"}, []string{"5C"})
	e := New(Rules{})

	err := e.ValidateAndApply(st, p1, models.Capture{
		HandCardID:         "10S",
		TargetTableCardIDs: []string{"5C", "5C"},
	})
	assert.Equal(t, RejectInvalidCaptureSum, rejectionCode(t, err))
	assert.Len(t, st.TableCards, 1, "rejected action must leave state untouched")
	assert.Len(t, st.Player1Hand, 2)
	assert.Equal(t, p1, st.CurrentTurn)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestCaptureRejectsRepeatedBuildTargets(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"KS", "2C"}, []string{"3H"}, nil)
	cards := takeByID(&st.Deck, "8S", "5D")
	st.Builds = []models.Build{{ID: "build-1", Cards: cards, Value: 13, BuilderPlayerID: p1}}
	require.Equal(t, models.DeckSize, st.CardCount())

	err := New(Rules{}).ValidateAndApply(st, p1, models.Capture{
		HandCardID:     "KS",
		TargetBuildIDs: []string{"build-1", "build-1"},
	})
	assert.Equal(t, RejectInvalidCaptureSum, rejectionCode(t, err))
	require.Len(t, st.Builds, 1)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestCaptureRemovesOnlyReferencedBuild(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"KS", "KD"}, []string{"KC", "2H"}, []string{"KH"})

	b1Cards := takeByID(&st.Deck, "8S", "5D")
	b2Cards := takeByID(&st.Deck, "10C", "3H")
	st.Builds = []models.Build{
		{ID: "build-1", Cards: b1Cards, Value: 13, BuilderPlayerID: p1},
		{ID: "build-2", Cards: b2Cards, Value: 13, BuilderPlayerID: p2},
	}
	require.Equal(t, models.DeckSize, st.CardCount())

	e := New(Rules{})
	err := e.ValidateAndApply(st, p1, models.Capture{
		HandCardID:     "KS",
		TargetBuildIDs: []string{"build-1"},
	})
	require.NoError(t, err)

	// Same-valued build and same-valued loose card survive untouched.
	require.Len(t, st.Builds, 1)
	assert.Equal(t, "build-2", st.Builds[0].ID)
	require.Len(t, st.TableCards, 1)
	assert.Equal(t, "KH", st.TableCards[0].ID)
	assert.Len(t, st.Player1Captured, 3)
}

func TestAceCapturesAtBothValues(t *testing.T) {
	t.Run("as one", func(t *testing.T) {
		p1, p2 := uuid.New(), uuid.New()
		st := newRoundState(t, p1, p2, []string{"AS", "2C"}, []string{"3H"}, []string{"AD"})
		err := New(Rules{}).ValidateAndApply(st, p1, models.Capture{
			HandCardID:         "AS",
			TargetTableCardIDs: []string{"AD"},
		})
		require.NoError(t, err)
		assert.Len(t, st.Player1Captured, 2)
	})

	t.Run("as fourteen", func(t *testing.T) {
		p1, p2 := uuid.New(), uuid.New()
		st := newRoundState(t, p1, p2, []string{"AH", "2C"}, []string{"3H"}, nil)
		cards := takeByID(&st.Deck, "9S", "5D")
		st.Builds = []models.Build{{ID: "build-1", Cards: cards, Value: 14, BuilderPlayerID: p2}}
		require.Equal(t, models.DeckSize, st.CardCount())

		err := New(Rules{}).ValidateAndApply(st, p1, models.Capture{
			HandCardID:     "AH",
			TargetBuildIDs: []string{"build-1"},
		})
		require.NoError(t, err)
		assert.Len(t, st.Player1Captured, 3)
		assert.Empty(t, st.Builds)
	})
}

func TestBuildCreate(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"3S", "8D"}, []string{"2H", "4H"}, []string{"5C"})
	e := New(Rules{})

	err := e.ValidateAndApply(st, p1, models.BuildAction{
		HandCardID:           "3S",
		ConsumedTableCardIDs: []string{"5C"},
		BuildValue:           8,
	})
	require.NoError(t, err)

	require.Len(t, st.Builds, 1)
	b := st.Builds[0]
	assert.Equal(t, 8, b.Value)
	assert.Equal(t, p1, b.BuilderPlayerID)
	assert.Len(t, b.Cards, 2)
	assert.Contains(t, b.CapturableBy, p1, "builder still holds the 8")
	assert.Empty(t, st.TableCards)
	assert.Equal(t, p2, st.CurrentTurn)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestBuildRejectsRepeatedConsumedCards(t *testing.T) {
	// Consuming the same table card twice would mint a duplicate into the
	// build and break card conservation; it must bounce as a plain
	// rejection, never as a fatal invariant violation.
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"3S", "KD"}, []string{"2H"}, []string{"5C"})

	err := New(Rules{}).ValidateAndApply(st, p1, models.BuildAction{
		HandCardID:           "3S",
		ConsumedTableCardIDs: []string{"5C", "5C"},
		BuildValue:           13,
	})
	assert.Equal(t, RejectInvalidBuild, rejectionCode(t, err))
	var inv *InvariantError
	assert.False(t, errors.As(err, &inv))
	assert.Empty(t, st.Builds)
	assert.Len(t, st.TableCards, 1)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestBuildRejectedWhenDead(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"3S", "2C"}, []string{"2H"}, []string{"5C"})
	err := New(Rules{}).ValidateAndApply(st, p1, models.BuildAction{
		HandCardID:           "3S",
		ConsumedTableCardIDs: []string{"5C"},
		BuildValue:           8,
	})
	assert.Equal(t, RejectDeadBuild, rejectionCode(t, err))
	assert.Empty(t, st.Builds)
	assert.Len(t, st.Player1Hand, 2)
}

func TestBuildExtensionKeepsIdentity(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"3S", "8D"}, []string{"6H", "AD"}, []string{"5C"})
	e := New(Rules{})

	require.NoError(t, e.ValidateAndApply(st, p1, models.BuildAction{
		HandCardID:           "3S",
		ConsumedTableCardIDs: []string{"5C"},
		BuildValue:           8,
	}))
	require.Len(t, st.Builds, 1)
	originalID := st.Builds[0].ID

	// Opponent raises 8 to 14, holding an Ace to take it.
	require.NoError(t, e.ValidateAndApply(st, p2, models.BuildAction{
		HandCardID:    "6H",
		BuildValue:    14,
		TargetBuildID: originalID,
	}))

	require.Len(t, st.Builds, 1)
	b := st.Builds[0]
	assert.Equal(t, originalID, b.ID, "extension must not mint a new build id")
	assert.Equal(t, 14, b.Value)
	assert.Equal(t, p2, b.BuilderPlayerID)
	assert.Len(t, b.Cards, 3)
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestStrictTrailingRequiresDeadCard(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"8S", "2C"}, []string{"3H"}, []string{"8D"})
	e := New(Rules{StrictTrailing: true})

	err := e.ValidateAndApply(st, p1, models.Trail{HandCardID: "8S"})
	assert.Equal(t, RejectDeadCardRequired, rejectionCode(t, err))

	// The 2 cannot capture anything here, so it may trail.
	require.NoError(t, e.ValidateAndApply(st, p1, models.Trail{HandCardID: "2C"}))
	assert.Len(t, st.TableCards, 2)
}

func TestDefaultTrailingAllowsAnyCard(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"8S", "2C"}, []string{"3H"}, []string{"8D"})
	require.NoError(t, New(Rules{}).ValidateAndApply(st, p1, models.Trail{HandCardID: "8S"}))
	assert.Len(t, st.TableCards, 2)
}

func TestNotYourTurn(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"8S"}, []string{"3H"}, nil)
	err := New(Rules{}).ValidateAndApply(st, p2, models.Trail{HandCardID: "3H"})
	assert.Equal(t, RejectNotYourTurn, rejectionCode(t, err))
}

func TestSubDealWhenBothHandsEmpty(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := newRoundState(t, p1, p2, []string{"2C"}, nil, []string{"8D"})
	e := New(Rules{})

	require.NoError(t, e.ValidateAndApply(st, p1, models.Trail{HandCardID: "2C"}))

	assert.Len(t, st.Player1Hand, HandSize)
	assert.Len(t, st.Player2Hand, HandSize)
	assert.Equal(t, models.PhaseRound1, st.Phase, "a sub-deal does not end the round")
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestRoundEndSweepsToLastCapturerAndFinishes(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := models.NewRoomState(uuid.New())
	st.Player1ID, st.Player2ID = p1, p2
	st.Phase = models.PhaseRound1
	st.Round = 1
	st.CurrentTurn = p1

	st.Player1Hand = takeByID(&st.Deck, "2C")
	st.TableCards = takeByID(&st.Deck, "8D")
	st.Player1Captured = st.Deck // everything else already captured by p1
	st.Deck = nil
	st.LastCapturer = p1
	require.Equal(t, models.DeckSize, st.CardCount())

	require.NoError(t, New(Rules{}).ValidateAndApply(st, p1, models.Trail{HandCardID: "2C"}))

	// Sweep gives p1 the whole deck: 7 card points + most cards + most
	// spades = 11, which ends the game.
	assert.Equal(t, models.PhaseFinished, st.Phase)
	assert.Len(t, st.Player1Captured, models.DeckSize)
	assert.Equal(t, 11, st.Player1Score)
	assert.Equal(t, 0, st.Player2Score)
	assert.Equal(t, p1, Winner(st))
	assert.Equal(t, uuid.Nil, st.CurrentTurn)
}

func TestRoundBelowWinningScoreStartsNextRound(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := models.NewRoomState(uuid.New())
	st.Player1ID, st.Player2ID = p1, p2
	st.Phase = models.PhaseRound1
	st.Round = 1
	st.CurrentTurn = p1

	st.Player1Hand = takeByID(&st.Deck, "2C")
	st.TableCards = takeByID(&st.Deck, "8D")

	// Split the remaining cards: hearts and clubs to p1, the rest to p2.
	for _, c := range st.Deck {
		if c.Suit == "H" || c.Suit == "C" {
			st.Player1Captured = append(st.Player1Captured, c)
		} else {
			st.Player2Captured = append(st.Player2Captured, c)
		}
	}
	st.Deck = nil
	st.LastCapturer = p2
	require.Equal(t, models.DeckSize, st.CardCount())

	require.NoError(t, New(Rules{ShuffleSeed: 9}).ValidateAndApply(st, p1, models.Trail{HandCardID: "2C"}))

	// p1 holds two aces (2); p2 sweeps the table and scores 2 aces, the
	// 2 of spades, the 10 of diamonds, most cards, and most spades (9).
	assert.Equal(t, 2, st.Player1Score)
	assert.Equal(t, 9, st.Player2Score)
	assert.Equal(t, models.PhaseRound2, st.Phase)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, p2, st.CurrentTurn, "player 2 leads even rounds")
	assert.Len(t, st.Player1Hand, HandSize)
	assert.Empty(t, st.Player1Captured, "capture piles reset between rounds")
	assert.Equal(t, models.DeckSize, st.CardCount())
}

func TestShuffleIsDeterministicPerSeed(t *testing.T) {
	a := shuffledDeck(99)
	b := shuffledDeck(99)
	c := shuffledDeck(100)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

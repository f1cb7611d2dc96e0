// internal/engine/deck.go
package engine

import (
	"math/rand"

	"github.com/jason-s-yu/cassino/internal/models"
)

const (
	// HandSize cards per player per deal; TableDeal cards face up on the
	// opening deal. 12+12+4 leaves 24 in the deck for one sub-deal.
	HandSize  = 12
	TableDeal = 4
)

// shuffledDeck returns the 52 cards shuffled by the given seed, so a room
// configured with a fixed seed deals deterministically.
func shuffledDeck(seed int64) []models.Card {
	deck := models.NewDeck()
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// dealOpening distributes the opening hands and table cards from st.Deck.
func dealOpening(st *models.RoomState) {
	st.Player1Hand = draw(st, HandSize)
	st.Player2Hand = draw(st, HandSize)
	st.TableCards = draw(st, TableDeal)
}

// subDeal refills both hands from the remaining deck once both empty out
// mid-round. The standard deal leaves exactly 24 cards, one full refill.
func subDeal(st *models.RoomState) {
	for i := 0; i < HandSize && len(st.Deck) > 0; i++ {
		st.Player1Hand = append(st.Player1Hand, st.Deck[0])
		st.Deck = st.Deck[1:]
		if len(st.Deck) == 0 {
			break
		}
		st.Player2Hand = append(st.Player2Hand, st.Deck[0])
		st.Deck = st.Deck[1:]
	}
}

func draw(st *models.RoomState, n int) []models.Card {
	if n > len(st.Deck) {
		n = len(st.Deck)
	}
	out := append([]models.Card(nil), st.Deck[:n]...)
	st.Deck = st.Deck[n:]
	return out
}

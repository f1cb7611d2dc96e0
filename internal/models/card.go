// internal/models/card.go
package models

import "fmt"

// Suits and ranks use the same single-letter/short encoding across the wire
// and in card IDs, so a card's identity is stable for the whole game.
var (
	Suits = []string{"S", "H", "D", "C"}
	Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// rankValues maps every non-Ace rank to its single numeric value.
var rankValues = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8,
	"9": 9, "10": 10, "J": 11, "Q": 12, "K": 13,
}

// Card is immutable once dealt. It intentionally carries no numeric value:
// an Ace is worth 1 or 14 depending on what it is played against, so values
// are always derived at validation time via AdmissibleValues.
type Card struct {
	ID   string `json:"id"`
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// NewCard builds a card whose ID is its rank+suit, e.g. "10D", "AS".
func NewCard(rank, suit string) Card {
	return Card{ID: rank + suit, Rank: rank, Suit: suit}
}

// IsAce reports whether the card is an Ace.
func (c Card) IsAce() bool { return c.Rank == "A" }

// AdmissibleValues returns the set of numeric values this card may take.
// Aces yield {1, 14}; every other rank has exactly one value.
func (c Card) AdmissibleValues() []int {
	if c.IsAce() {
		return []int{1, 14}
	}
	if v, ok := rankValues[c.Rank]; ok {
		return []int{v}
	}
	return nil
}

// CanTake reports whether value is in the card's admissible-value set.
func (c Card) CanTake(value int) bool {
	for _, v := range c.AdmissibleValues() {
		if v == value {
			return true
		}
	}
	return false
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// NewDeck returns the 52-card deck in canonical (unshuffled) order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			deck = append(deck, NewCard(rank, suit))
		}
	}
	return deck
}

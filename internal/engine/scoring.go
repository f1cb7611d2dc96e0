// internal/engine/scoring.go
package engine

import "github.com/jason-s-yu/cassino/internal/models"

// Round scoring:
//
//	each Ace           1 pt
//	2 of spades        1 pt
//	10 of diamonds     2 pt
//	most cards         2 pt (tie: nobody)
//	most spades        2 pt (tie: nobody)
func ScoreRound(captured1, captured2 []models.Card) (p1, p2 int) {
	p1 = cardPoints(captured1)
	p2 = cardPoints(captured2)

	if len(captured1) > len(captured2) {
		p1 += 2
	} else if len(captured2) > len(captured1) {
		p2 += 2
	}

	s1, s2 := countSuit(captured1, "S"), countSuit(captured2, "S")
	if s1 > s2 {
		p1 += 2
	} else if s2 > s1 {
		p2 += 2
	}
	return p1, p2
}

func cardPoints(pile []models.Card) int {
	pts := 0
	for _, c := range pile {
		if c.IsAce() {
			pts++
		}
		if c.Rank == "2" && c.Suit == "S" {
			pts++
		}
		if c.Rank == "10" && c.Suit == "D" {
			pts += 2
		}
	}
	return pts
}

func countSuit(pile []models.Card, suit string) int {
	n := 0
	for _, c := range pile {
		if c.Suit == suit {
			n++
		}
	}
	return n
}

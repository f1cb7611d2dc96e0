// internal/models/room_state.go
package models

import "github.com/google/uuid"

// Phase is the room's lifecycle state.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseDealer   Phase = "dealer"
	PhaseRound1   Phase = "round1"
	PhaseRound2   Phase = "round2"
	PhaseFinished Phase = "finished"
)

// DeckSize is the invariant total across all card zones.
const DeckSize = 52

// RoomState is the authoritative state for one room. It is owned and
// mutated exclusively by the room's serialized context; everything else
// sees cloned snapshots. Field order is load-bearing: the checksum is a
// hash of the struct-order JSON encoding.
type RoomState struct {
	RoomID   uuid.UUID `json:"room_id"`
	Phase    Phase     `json:"phase"`
	Round    int       `json:"round"`
	Version  int64     `json:"version"`
	Checksum string    `json:"checksum"`

	Player1ID uuid.UUID `json:"player1_id"`
	Player2ID uuid.UUID `json:"player2_id"`

	Deck            []Card  `json:"deck"`
	Player1Hand     []Card  `json:"player1_hand"`
	Player2Hand     []Card  `json:"player2_hand"`
	TableCards      []Card  `json:"table_cards"`
	Builds          []Build `json:"builds"`
	Player1Captured []Card  `json:"player1_captured"`
	Player2Captured []Card  `json:"player2_captured"`

	Player1Score int `json:"player1_score"`
	Player2Score int `json:"player2_score"`

	CurrentTurn  uuid.UUID `json:"current_turn"`
	Player1Ready bool      `json:"player1_ready"`
	Player2Ready bool      `json:"player2_ready"`

	// BuildSeq numbers builds within the room so replays produce
	// identical build IDs.
	BuildSeq int `json:"build_seq"`

	// LastCapturer takes the table sweep at round end.
	LastCapturer uuid.UUID `json:"last_capturer"`
}

// NewRoomState returns a waiting room holding the full unshuffled deck, so
// card conservation holds from the very first reachable state.
func NewRoomState(roomID uuid.UUID) *RoomState {
	return &RoomState{
		RoomID: roomID,
		Phase:  PhaseWaiting,
		Deck:   NewDeck(),
	}
}

// IsPlayer reports whether id occupies one of the room's two seats.
func (s *RoomState) IsPlayer(id uuid.UUID) bool {
	return id != uuid.Nil && (id == s.Player1ID || id == s.Player2ID)
}

// Seat returns 1 or 2 for a seated player, 0 otherwise.
func (s *RoomState) Seat(id uuid.UUID) int {
	switch {
	case id != uuid.Nil && id == s.Player1ID:
		return 1
	case id != uuid.Nil && id == s.Player2ID:
		return 2
	default:
		return 0
	}
}

// HandOf returns a pointer to the player's hand slice.
func (s *RoomState) HandOf(id uuid.UUID) *[]Card {
	switch s.Seat(id) {
	case 1:
		return &s.Player1Hand
	case 2:
		return &s.Player2Hand
	}
	return nil
}

// CapturedOf returns a pointer to the player's capture pile.
func (s *RoomState) CapturedOf(id uuid.UUID) *[]Card {
	switch s.Seat(id) {
	case 1:
		return &s.Player1Captured
	case 2:
		return &s.Player2Captured
	}
	return nil
}

// Opponent returns the other seated player.
func (s *RoomState) Opponent(id uuid.UUID) uuid.UUID {
	switch s.Seat(id) {
	case 1:
		return s.Player2ID
	case 2:
		return s.Player1ID
	}
	return uuid.Nil
}

// CardCount sums every card zone. It must equal DeckSize in every
// reachable state; a different total is a fatal invariant violation.
func (s *RoomState) CardCount() int {
	n := len(s.Deck) + len(s.Player1Hand) + len(s.Player2Hand) + len(s.TableCards) +
		len(s.Player1Captured) + len(s.Player2Captured)
	for _, b := range s.Builds {
		n += len(b.Cards)
	}
	return n
}

// Clone returns a deep copy safe to hand outside the room's lock.
func (s *RoomState) Clone() *RoomState {
	c := *s
	c.Deck = append([]Card(nil), s.Deck...)
	c.Player1Hand = append([]Card(nil), s.Player1Hand...)
	c.Player2Hand = append([]Card(nil), s.Player2Hand...)
	c.TableCards = append([]Card(nil), s.TableCards...)
	c.Player1Captured = append([]Card(nil), s.Player1Captured...)
	c.Player2Captured = append([]Card(nil), s.Player2Captured...)
	if s.Builds != nil {
		c.Builds = make([]Build, len(s.Builds))
		for i, b := range s.Builds {
			nb := b
			nb.Cards = append([]Card(nil), b.Cards...)
			nb.CapturableBy = append([]uuid.UUID(nil), b.CapturableBy...)
			c.Builds[i] = nb
		}
	}
	return &c
}

// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jason-s-yu/cassino/internal/models"
)

// playCardRequest wraps a wire action with its room. The action_id inside
// the wire payload is the idempotency key; resubmitting it returns the
// stored result without re-applying the move.
type playCardRequest struct {
	RoomID string `json:"room_id"`
	models.WireAction
}

// playCardResponse mirrors stateResponse plus the log position, so a
// client can resume replay from resulting_version after a reconnect.
type playCardResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	Code             string            `json:"code,omitempty"`
	Replayed         bool              `json:"replayed,omitempty"`
	Sequence         int64             `json:"sequence"`
	ResultingVersion int64             `json:"resulting_version"`
	GameState        *models.RoomState `json:"game_state"`
}

// PlayCardHandler applies one capture, build, or trail over REST. The
// WebSocket play_card message goes through the same room pipeline.
//
// POST /game/play-card
func (s *Server) PlayCardHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid request body"})
		return
	}
	var req playCardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid request body"})
		return
	}
	sess, err := s.authorize(r, req.RoomID, "")
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	rm, ok := s.Rooms.Get(sess.RoomID)
	if !ok {
		writeJSON(w, http.StatusNotFound, stateResponse{Success: false, Message: "room not found"})
		return
	}
	act, err := req.WireAction.Decode()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: err.Error()})
		return
	}

	res, err := rm.ApplyAction(sess.PlayerID, req.ActionID, act, body)
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playCardResponse{
		Success:          true,
		Replayed:         res.Replayed,
		Sequence:         res.Entry.Sequence,
		ResultingVersion: res.Entry.ResultingVersion,
		GameState:        res.State,
	})
}

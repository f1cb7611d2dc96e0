// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
	"github.com/jason-s-yu/cassino/internal/room"
	"github.com/jason-s-yu/cassino/internal/statesync"
)

// joinResponse is returned by create and join. The session token is the
// player's credential for every subsequent request.
type joinResponse struct {
	Success      bool              `json:"success"`
	RoomID       string            `json:"room_id"`
	PlayerID     string            `json:"player_id"`
	Seat         int               `json:"seat"`
	SessionToken string            `json:"session_token"`
	GameState    *models.RoomState `json:"game_state"`
}

// wireBroadcast hooks the room's post-mutation fan-out into the broker.
func (s *Server) wireBroadcast(rm *room.Room) {
	rm.Broadcast = func(env statesync.Envelope) {
		s.Broker.Broadcast(rm.ID, env)
	}
}

// CreateRoomHandler creates a new room and seats the caller as player one.
//
// POST /rooms/create  {"player_id": "<uuid, optional>"}
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	playerID, err := parseOrNewUUID(req.PlayerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid player_id"})
		return
	}

	rm := s.Rooms.Create(engine.Rules{})
	s.wireBroadcast(rm)

	seat, err := rm.Join(playerID)
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	token, err := s.Sessions.Create(playerID, rm.ID)
	if err != nil {
		s.Logger.WithError(err).Error("failed to issue session token")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.Logger.WithField("room", rm.ID).WithField("player", playerID).Info("room created")
	writeJSON(w, http.StatusOK, joinResponse{
		Success:      true,
		RoomID:       rm.ID.String(),
		PlayerID:     playerID.String(),
		Seat:         seat,
		SessionToken: token,
		GameState:    rm.Snapshot(),
	})
}

// JoinRoomHandler seats the caller in the named room, or matchmakes into
// the oldest waiting room (creating one if none exists).
//
// POST /rooms/join  {"room_id": "<uuid, optional>", "player_id": "<uuid, optional>"}
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		RoomID   string `json:"room_id"`
		PlayerID string `json:"player_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	playerID, err := parseOrNewUUID(req.PlayerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid player_id"})
		return
	}

	var rm *room.Room
	if req.RoomID != "" {
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid room_id"})
			return
		}
		var ok bool
		rm, ok = s.Rooms.Get(roomID)
		if !ok {
			writeJSON(w, http.StatusNotFound, stateResponse{Success: false, Message: "room not found"})
			return
		}
	} else if rm = s.Rooms.FirstWaiting(); rm == nil {
		rm = s.Rooms.Create(engine.Rules{})
		s.wireBroadcast(rm)
	}

	seat, err := rm.Join(playerID)
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	token, err := s.Sessions.Create(playerID, rm.ID)
	if err != nil {
		s.Logger.WithError(err).Error("failed to issue session token")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{
		Success:      true,
		RoomID:       rm.ID.String(),
		PlayerID:     playerID.String(),
		Seat:         seat,
		SessionToken: token,
		GameState:    rm.Snapshot(),
	})
}

// PlayerReadyHandler flips the caller's ready flag. When both seats are
// ready the engine deals round one inside the same mutation.
//
// POST /rooms/player-ready  {"room_id": "...", "ready": true}
func (s *Server) PlayerReadyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		RoomID string `json:"room_id"`
		Ready  *bool  `json:"ready"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid request body"})
		return
	}
	sess, err := s.authorize(r, req.RoomID, "")
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}
	rm, ok := s.Rooms.Get(sess.RoomID)
	if !ok {
		writeJSON(w, http.StatusNotFound, stateResponse{Success: false, Message: "room not found"})
		return
	}
	st, err := rm.SetReady(sess.PlayerID, ready)
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Success: true, GameState: st})
}

// LeaveRoomHandler frees the caller's seat and invalidates the session.
// Only waiting rooms release seats; mid-game the session survives so the
// player can reconnect until the abandonment sweep claims it.
//
// POST /rooms/leave  {"room_id": "..."}
func (s *Server) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		RoomID string `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: "invalid request body"})
		return
	}
	sess, err := s.authorize(r, req.RoomID, "")
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	if rm, ok := s.Rooms.Get(sess.RoomID); ok {
		rm.FreeSeat(sess.PlayerID)
	}
	s.Sessions.Invalidate(bearerToken(r))
	s.Logger.WithField("room", sess.RoomID).WithField("player", sess.PlayerID).Info("player left room")
	writeJSON(w, http.StatusOK, stateResponse{Success: true})
}

// RoomStateHandler is the polling fallback for clients without a live
// socket. It returns the same stamped envelope the broadcast carries.
//
// GET /rooms/{id}/state
func (s *Server) RoomStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "rooms" || parts[2] != "state" {
		http.NotFound(w, r)
		return
	}
	sess, err := s.authorize(r, parts[1], "")
	if err != nil {
		s.writeRejection(w, err)
		return
	}
	rm, ok := s.Rooms.Get(sess.RoomID)
	if !ok {
		writeJSON(w, http.StatusNotFound, stateResponse{Success: false, Message: "room not found"})
		return
	}
	writeJSON(w, http.StatusOK, statesync.NewEnvelope(rm.Snapshot()))
}

func parseOrNewUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/cassino/internal/broker"
	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
	"github.com/jason-s-yu/cassino/internal/room"
	"github.com/jason-s-yu/cassino/internal/session"
)

// Server bundles the components behind the HTTP surface.
type Server struct {
	Logger   *logrus.Logger
	Rooms    *room.Store
	Sessions *session.Manager
	Broker   *broker.Broker
}

func NewServer(logger *logrus.Logger, rooms *room.Store, sessions *session.Manager, b *broker.Broker) *Server {
	return &Server{Logger: logger, Rooms: rooms, Sessions: sessions, Broker: b}
}

// Routes registers every endpoint on the mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/rooms/create", s.CreateRoomHandler)
	mux.HandleFunc("/rooms/join", s.JoinRoomHandler)
	mux.HandleFunc("/rooms/player-ready", s.PlayerReadyHandler)
	mux.HandleFunc("/rooms/leave", s.LeaveRoomHandler)
	mux.HandleFunc("/rooms/", s.RoomStateHandler) // GET /rooms/{id}/state
	mux.HandleFunc("/game/play-card", s.PlayCardHandler)
	mux.HandleFunc("/ws/", s.GameWSHandler)
}

// stateResponse is the common REST reply carrying the full stamped state.
type stateResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Code      string            `json:"code,omitempty"`
	GameState *models.RoomState `json:"game_state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRejection maps the error taxonomy onto HTTP. Validation rejections
// stay 200 with success=false so clients treat them as game feedback, not
// transport failures; session errors force the rejoin flow.
func (s *Server) writeRejection(w http.ResponseWriter, err error) {
	var rej *engine.Rejection
	switch {
	case errors.As(err, &rej):
		writeJSON(w, http.StatusOK, stateResponse{Success: false, Code: string(rej.Code), Message: rej.Message})
	case errors.Is(err, session.ErrExpired):
		writeJSON(w, http.StatusUnauthorized, stateResponse{Success: false, Code: "SessionExpired", Message: "session expired, rejoin required"})
	case errors.Is(err, session.ErrInvalid), errors.Is(err, session.ErrUnknown):
		writeJSON(w, http.StatusUnauthorized, stateResponse{Success: false, Code: "SessionInvalid", Message: "session invalid, rejoin required"})
	case errors.Is(err, room.ErrRoomFailed):
		writeJSON(w, http.StatusInternalServerError, stateResponse{Success: false, Code: "RoomAborted", Message: err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, stateResponse{Success: false, Message: err.Error()})
	}
}

// bearerToken pulls the session token from the Authorization header or the
// session_token query parameter.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return r.URL.Query().Get("session_token")
}

// authorize validates the session token and checks it covers the claimed
// room and player. Every authorized request doubles as a heartbeat, so a
// client polling GET state without a socket is not swept as abandoned.
func (s *Server) authorize(r *http.Request, roomID, playerID string) (session.Session, error) {
	token := bearerToken(r)
	sess, err := s.Sessions.Validate(token)
	if err != nil {
		return session.Session{}, err
	}
	if sess.RoomID.String() != roomID || (playerID != "" && sess.PlayerID.String() != playerID) {
		return session.Session{}, session.ErrInvalid
	}
	s.Sessions.Touch(token)
	return sess, nil
}

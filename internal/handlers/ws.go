// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/broker"
	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
	"github.com/jason-s-yu/cassino/internal/room"
	"github.com/jason-s-yu/cassino/internal/statesync"
)

// wsMessage is the envelope for every inbound WebSocket message. Fields
// beyond Type are populated per message kind: play_card carries a wire
// action, sync_check carries the client's version and checksum.
type wsMessage struct {
	Type string `json:"type"`

	models.WireAction

	Version  int64  `json:"version,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// wsAck is sent back to the acting player once their move is in the log.
type wsAck struct {
	Type             string `json:"type"`
	ActionID         string `json:"action_id,omitempty"`
	Sequence         int64  `json:"sequence,omitempty"`
	ResultingVersion int64  `json:"resulting_version,omitempty"`
	ServerTime       int64  `json:"server_time,omitempty"`
}

// wsRejection reports a rejected action without closing the connection.
type wsRejection struct {
	Type     string `json:"type"`
	ActionID string `json:"action_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// wsReplay carries the log tail for a reconnecting client whose
// last_version is close enough to replay instead of full resync.
type wsReplay struct {
	Type        string            `json:"type"`
	RoomID      string            `json:"room_id"`
	FromVersion int64             `json:"from_version"`
	Actions     []actionlog.Entry `json:"actions"`
}

// GameWSHandler upgrades to WebSocket for one room. The session token
// rides in the session_token query parameter; last_version lets a
// reconnecting client request a replay instead of the full state.
//
// GET /ws/{room_id}?session_token=...&last_version=N
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	roomIDStr := strings.TrimPrefix(r.URL.Path, "/ws/")
	roomID, err := uuid.Parse(strings.TrimSuffix(roomIDStr, "/"))
	if err != nil {
		http.Error(w, "Invalid room_id in path (/ws/{room_id})", http.StatusBadRequest)
		return
	}
	rm, ok := s.Rooms.Get(roomID)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if rm.Failed() {
		http.Error(w, "Room has been aborted", http.StatusGone)
		return
	}

	token := bearerToken(r)
	sess, err := s.Sessions.Validate(token)
	if err != nil || sess.RoomID != roomID {
		http.Error(w, "Session invalid for this room", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

	if c.Subprotocol() != "game" {
		c.Close(websocket.StatusPolicyViolation, "Client must use the 'game' subprotocol.")
		return
	}
	s.Logger.Infof("WebSocket connection established for player %s in room %s", sess.PlayerID, roomID)

	s.Sessions.Connect(token)
	client := s.Broker.Register(roomID, sess.PlayerID, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// The broker drops clients whose queue overflows; unblock the
		// read loop when that happens.
		<-client.Done()
		cancel()
	}()

	s.sendInitialSync(rm, client, r.URL.Query().Get("last_version"))

	s.readMessages(ctx, c, rm, client, token, sess.PlayerID)

	s.Logger.Infof("Player %s WebSocket read loop exited for room %s", sess.PlayerID, roomID)
	s.Broker.Unregister(roomID, client)
	s.Sessions.Disconnect(token)
}

// sendInitialSync replays the action-log tail when the client's
// last_version is recent enough, otherwise sends the full stamped state.
func (s *Server) sendInitialSync(rm *room.Room, client *broker.Client, lastVersionStr string) {
	lastVersion, _ := strconv.ParseInt(lastVersionStr, 10, 64)
	state, tail, ok := rm.Resync(lastVersion)
	if ok && lastVersion > 0 {
		s.Broker.Send(rm.ID, client, wsReplay{
			Type:        "action_replay",
			RoomID:      rm.ID.String(),
			FromVersion: lastVersion,
			Actions:     tail,
		})
		return
	}
	s.Broker.Send(rm.ID, client, statesync.NewEnvelope(state))
}

// readMessages is the per-connection read loop. Messages are rate limited
// so one client cannot monopolize the room lock.
func (s *Server) readMessages(ctx context.Context, c *websocket.Conn, rm *room.Room, client *broker.Client, token string, playerID uuid.UUID) {
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 10)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.Logger.Infof("WebSocket closed normally for player %s in room %s", playerID, rm.ID)
			} else if ctx.Err() == nil {
				s.Logger.Warnf("Error reading from WebSocket for player %s in room %s: %v", playerID, rm.ID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Broker.Send(rm.ID, client, wsRejection{Type: "error", Message: "Invalid JSON format."})
			continue
		}

		switch msg.Type {
		case "heartbeat":
			if err := s.Sessions.Heartbeat(token); err != nil {
				c.Close(websocket.StatusPolicyViolation, "session expired, rejoin required")
				return
			}
			s.Broker.Send(rm.ID, client, wsAck{Type: "heartbeat_ack", ServerTime: time.Now().Unix()})

		case "sync_check":
			// A diverged client gets the full state; matching clients
			// just get an ack.
			if rm.Desynced(msg.Version, msg.Checksum) {
				s.Logger.WithField("room", rm.ID).WithField("player", playerID).
					Warn("client state diverged, sending full resync")
				s.Broker.Send(rm.ID, client, statesync.NewEnvelope(rm.Snapshot()))
			} else {
				s.Broker.Send(rm.ID, client, wsAck{Type: "sync_ok", ResultingVersion: msg.Version})
			}

		case "play_card":
			s.handleWSPlay(rm, client, playerID, msg, data)

		case "player_ready":
			if _, err := rm.SetReady(playerID, true); err != nil {
				s.sendWSRejection(rm, client, "", err)
			}

		case "leave":
			rm.FreeSeat(playerID)
			s.Sessions.Invalidate(token)
			c.Close(websocket.StatusNormalClosure, "left room")
			return

		default:
			s.Broker.Send(rm.ID, client, wsRejection{Type: "error", Message: "Unknown message type."})
		}
	}
}

func (s *Server) handleWSPlay(rm *room.Room, client *broker.Client, playerID uuid.UUID, msg wsMessage, raw []byte) {
	act, err := msg.WireAction.Decode()
	if err != nil {
		s.Broker.Send(rm.ID, client, wsRejection{Type: "action_rejected", ActionID: msg.ActionID, Message: err.Error()})
		return
	}
	res, err := rm.ApplyAction(playerID, msg.ActionID, act, raw)
	if err != nil {
		s.sendWSRejection(rm, client, msg.ActionID, err)
		return
	}
	// Fresh applies reach everyone through the room broadcast; replayed
	// duplicates only re-ack the sender.
	s.Broker.Send(rm.ID, client, wsAck{
		Type:             "action_ack",
		ActionID:         msg.ActionID,
		Sequence:         res.Entry.Sequence,
		ResultingVersion: res.Entry.ResultingVersion,
	})
}

func (s *Server) sendWSRejection(rm *room.Room, client *broker.Client, actionID string, err error) {
	rej := wsRejection{Type: "action_rejected", ActionID: actionID, Message: err.Error()}
	var engRej *engine.Rejection
	if errors.As(err, &engRej) {
		rej.Code = string(engRej.Code)
	}
	s.Broker.Send(rm.ID, client, rej)
}

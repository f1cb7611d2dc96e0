// internal/room/room.go

// Package room owns the authoritative per-room state. Every mutation runs
// inside the room's mutex: session-checked action in, engine validation,
// action-log append, version/checksum stamp, then a fire-and-forget
// broadcast once the lock is released. Reads for reconnection are served
// from snapshots cloned inside the same lock, so they never observe a
// half-applied move.
package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
	"github.com/jason-s-yu/cassino/internal/statesync"
)

var (
	// ErrRoomFailed marks a room aborted after an invariant violation.
	ErrRoomFailed = errors.New("room aborted due to internal error")
	// ErrRoomFull rejects a third seat.
	ErrRoomFull = errors.New("room is full")
	// ErrNotSeated rejects actions from players without a seat.
	ErrNotSeated = errors.New("player is not seated in this room")
)

// BroadcastFunc delivers a stamped envelope to every connection in the
// room. It must not block; the broker's bounded queues guarantee that.
type BroadcastFunc func(envelope statesync.Envelope)

// FinishFunc is called once when a game reaches its terminal phase, with a
// snapshot of the final state and the winning player (uuid.Nil on a tie).
// It runs outside the room lock and may block on I/O.
type FinishFunc func(final *models.RoomState, winner uuid.UUID)

// Room binds one authoritative RoomState to its engine and log.
type Room struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu     sync.Mutex
	state  *models.RoomState
	eng    *engine.Engine
	log    *actionlog.Log
	failed bool

	Broadcast BroadcastFunc
	OnFinish  FinishFunc
	Logger    *logrus.Entry
}

// Result is the outcome of an accepted (or replayed) mutation.
type Result struct {
	Entry    actionlog.Entry
	State    *models.RoomState // stamped snapshot, safe to share
	Replayed bool
}

func newRoom(id uuid.UUID, eng *engine.Engine, log *actionlog.Log, logger *logrus.Logger) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		state:     models.NewRoomState(id),
		eng:       eng,
		log:       log,
		Logger:    logger.WithField("room", id),
	}
}

// Join seats the player, or returns their existing seat on rejoin.
func (r *Room) Join(playerID uuid.UUID) (int, error) {
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		return 0, ErrRoomFailed
	}
	if seat := r.state.Seat(playerID); seat != 0 {
		r.mu.Unlock()
		return seat, nil
	}
	if r.state.Phase != models.PhaseWaiting {
		r.mu.Unlock()
		return 0, fmt.Errorf("game already in progress")
	}
	var seat int
	switch {
	case r.state.Player1ID == uuid.Nil:
		r.state.Player1ID = playerID
		seat = 1
	case r.state.Player2ID == uuid.Nil:
		r.state.Player2ID = playerID
		seat = 2
	default:
		r.mu.Unlock()
		return 0, ErrRoomFull
	}
	statesync.Stamp(r.state)
	snapshot := r.state.Clone()
	r.mu.Unlock()

	r.broadcast(snapshot)
	return seat, nil
}

// SetReady flips a ready flag; when the second flag lands the engine deals
// and the round starts within the same stamped mutation.
func (r *Room) SetReady(playerID uuid.UUID, ready bool) (*models.RoomState, error) {
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		return nil, ErrRoomFailed
	}
	if !r.state.IsPlayer(playerID) {
		r.mu.Unlock()
		return nil, ErrNotSeated
	}
	if err := r.eng.SetReady(r.state, playerID, ready); err != nil {
		return nil, r.finishMutation(err)
	}
	statesync.Stamp(r.state)

	payload, _ := json.Marshal(map[string]interface{}{
		"type": "player_ready", "player_id": playerID, "is_ready": ready,
	})
	actionID := fmt.Sprintf("ready:%s:%d", playerID, r.state.Version)
	r.log.Append(r.ID, actionID, playerID, payload, r.state.Version)

	snapshot := r.state.Clone()
	r.mu.Unlock()

	r.broadcast(snapshot)
	return snapshot, nil
}

// ApplyAction runs the full pipeline for one play. A previously seen
// actionId short-circuits to the stored result without touching state.
func (r *Room) ApplyAction(playerID uuid.UUID, actionID string, act models.Action, raw json.RawMessage) (Result, error) {
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		return Result{}, ErrRoomFailed
	}
	if !r.state.IsPlayer(playerID) {
		r.mu.Unlock()
		return Result{}, ErrNotSeated
	}
	// A client that sends no actionId opts out of retry dedup; mint a key
	// server-side so the log stays fully indexed and the empty string
	// never collides across moves.
	if actionID == "" {
		actionID = uuid.NewString()
	} else if entry, ok := r.log.Lookup(r.ID, actionID); ok {
		res := Result{Entry: entry, State: r.state.Clone(), Replayed: true}
		r.mu.Unlock()
		return res, nil
	}

	if err := r.eng.ValidateAndApply(r.state, playerID, act); err != nil {
		return Result{}, r.finishMutation(err)
	}
	statesync.Stamp(r.state)
	entry, _ := r.log.Append(r.ID, actionID, playerID, raw, r.state.Version)
	r.log.Trim(r.ID, actionlog.DefaultMaxReplayGap)
	snapshot := r.state.Clone()
	r.mu.Unlock()

	r.broadcast(snapshot)
	if snapshot.Phase == models.PhaseFinished && r.OnFinish != nil {
		go r.OnFinish(snapshot, engine.Winner(snapshot))
	}
	return Result{Entry: entry, State: snapshot}, nil
}

// Snapshot returns a consistent clone of the authoritative state.
func (r *Room) Snapshot() *models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Resync serves a reconnecting client. The snapshot and the replay tail
// are taken under the same lock, so the tail is exactly the gap between
// the client's version and the snapshot.
func (r *Room) Resync(lastVersion int64) (*models.RoomState, []actionlog.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.Clone()
	entries, ok := r.log.ReplaySince(r.ID, lastVersion)
	return snapshot, entries, ok
}

// Desynced compares a client-reported (version, checksum) pair against
// the authoritative one.
func (r *Room) Desynced(version int64, checksum string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return statesync.Diverged(r.state, version, checksum)
}

// Failed reports whether the room was aborted.
func (r *Room) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// FreeSeat releases an abandoned seat while the room is still waiting.
// Mid-game the seat is kept; the idle sweep tears the room down instead.
func (r *Room) FreeSeat(playerID uuid.UUID) {
	r.mu.Lock()
	if r.state.Phase != models.PhaseWaiting || !r.state.IsPlayer(playerID) {
		r.mu.Unlock()
		return
	}
	switch r.state.Seat(playerID) {
	case 1:
		r.state.Player1ID = uuid.Nil
		r.state.Player1Ready = false
	case 2:
		r.state.Player2ID = uuid.Nil
		r.state.Player2Ready = false
	}
	statesync.Stamp(r.state)
	snapshot := r.state.Clone()
	r.mu.Unlock()

	r.broadcast(snapshot)
}

// finishMutation classifies an engine error while still holding the lock,
// then releases it. Rejections leave state untouched and flow back to the
// one client; invariant violations abort the room with an operator alert.
func (r *Room) finishMutation(err error) error {
	var inv *engine.InvariantError
	if errors.As(err, &inv) {
		r.failed = true
		r.mu.Unlock()
		r.Logger.WithField("alert", "room_aborted").WithError(err).
			Error("fatal invariant violation, aborting room")
		return fmt.Errorf("%w: %v", ErrRoomFailed, err)
	}
	r.mu.Unlock()
	return err
}

func (r *Room) broadcast(snapshot *models.RoomState) {
	if r.Broadcast != nil {
		r.Broadcast(statesync.NewEnvelope(snapshot))
	}
}

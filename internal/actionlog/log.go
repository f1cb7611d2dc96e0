// internal/actionlog/log.go

// Package actionlog keeps the ordered, deduplicated action history per
// room. Appending an actionId that is already recorded is a no-op that
// returns the stored entry, which gives clients exactly-once semantics
// over retries. Reconnecting clients replay the tail instead of taking a
// full state dump when the gap is small.
package actionlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxReplayGap bounds how far back ReplaySince will serve; larger
// gaps fall back to a full-state resync.
const DefaultMaxReplayGap = 64

// Entry is one accepted action.
type Entry struct {
	RoomID           uuid.UUID       `json:"room_id"`
	Sequence         int64           `json:"sequence"`
	ActionID         string          `json:"action_id"`
	PlayerID         uuid.UUID       `json:"player_id"`
	Action           json.RawMessage `json:"action"`
	ResultingVersion int64           `json:"resulting_version"`
	AppendedAt       time.Time       `json:"appended_at"`
}

// PersistFunc and PublishFunc are optional async sinks (Postgres row,
// historian queue). They run off the room lock and must tolerate replays:
// the database constraint on action_id makes duplicate writes no-ops.
type (
	PersistFunc func(ctx context.Context, e Entry) error
	PublishFunc func(ctx context.Context, e Entry) error
)

type roomLog struct {
	entries       []Entry
	byAction      map[string]int // actionID -> index into entries offset space
	nextSeq       int64
	trimmedBefore int64 // lowest resultingVersion still held
}

// Log holds every room's history.
type Log struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*roomLog
	maxReplayGap int

	Persist PersistFunc
	Publish PublishFunc
}

func New() *Log {
	return &Log{
		rooms:        make(map[uuid.UUID]*roomLog),
		maxReplayGap: DefaultMaxReplayGap,
	}
}

// Append records the action, or returns the previously stored entry when
// the actionId was already seen (replayed=true). The caller must only
// apply the action to game state when replayed is false.
func (l *Log) Append(roomID uuid.UUID, actionID string, playerID uuid.UUID, action json.RawMessage, resultingVersion int64) (Entry, bool) {
	l.mu.Lock()
	rl := l.room(roomID)
	if idx, ok := rl.byAction[actionID]; ok {
		e := rl.entries[idx]
		l.mu.Unlock()
		return e, true
	}
	rl.nextSeq++
	e := Entry{
		RoomID:           roomID,
		Sequence:         rl.nextSeq,
		ActionID:         actionID,
		PlayerID:         playerID,
		Action:           action,
		ResultingVersion: resultingVersion,
		AppendedAt:       time.Now(),
	}
	rl.byAction[actionID] = len(rl.entries)
	rl.entries = append(rl.entries, e)
	l.mu.Unlock()

	if l.Persist != nil {
		go l.Persist(context.Background(), e)
	}
	if l.Publish != nil {
		go l.Publish(context.Background(), e)
	}
	return e, false
}

// Lookup returns the stored entry for an actionId, if any.
func (l *Log) Lookup(roomID uuid.UUID, actionID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.rooms[roomID]
	if !ok {
		return Entry{}, false
	}
	idx, ok := rl.byAction[actionID]
	if !ok {
		return Entry{}, false
	}
	return rl.entries[idx], true
}

// ReplaySince returns the entries whose resulting version is greater than
// version, oldest first. ok is false when the gap is too large or the log
// was trimmed past the requested version; the caller must then resync with
// a full state envelope instead.
func (l *Log) ReplaySince(roomID uuid.UUID, version int64) ([]Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.rooms[roomID]
	if !ok {
		return nil, false
	}
	if version < rl.trimmedBefore {
		return nil, false
	}
	var tail []Entry
	for _, e := range rl.entries {
		if e.ResultingVersion > version {
			tail = append(tail, e)
		}
	}
	if len(tail) > l.maxReplayGap {
		return nil, false
	}
	return tail, true
}

// Trim drops all but the newest keep entries for the room. Replays that
// would need trimmed history fall back to a full resync.
func (l *Log) Trim(roomID uuid.UUID, keep int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.rooms[roomID]
	if !ok || len(rl.entries) <= keep {
		return
	}
	dropped := rl.entries[:len(rl.entries)-keep]
	rl.entries = append([]Entry(nil), rl.entries[len(rl.entries)-keep:]...)
	for _, e := range dropped {
		delete(rl.byAction, e.ActionID)
	}
	for i, e := range rl.entries {
		rl.byAction[e.ActionID] = i
	}
	if len(rl.entries) > 0 {
		rl.trimmedBefore = rl.entries[0].ResultingVersion
	}
}

// DropRoom releases a finished or torn-down room's history.
func (l *Log) DropRoom(roomID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, roomID)
}

func (l *Log) room(roomID uuid.UUID) *roomLog {
	rl, ok := l.rooms[roomID]
	if !ok {
		rl = &roomLog{byAction: make(map[string]int)}
		l.rooms[roomID] = rl
	}
	return rl
}

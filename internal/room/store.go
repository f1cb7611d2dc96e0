// internal/room/store.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
)

// IdleSweepInterval is how often idle rooms are checked for teardown.
const IdleSweepInterval = time.Minute

// Store is the room arena. Rooms are held in creation order so "first
// waiting room wins" matchmaking is deterministic.
type Store struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*Room
	ordered []uuid.UUID

	log    *actionlog.Log
	logger *logrus.Logger

	// OnTeardown releases resources owned elsewhere (sessions).
	OnTeardown func(roomID uuid.UUID)

	// OnFinish is installed on every room created here; see FinishFunc.
	OnFinish FinishFunc
}

func NewStore(log *actionlog.Log, logger *logrus.Logger) *Store {
	return &Store{
		rooms:  make(map[uuid.UUID]*Room),
		log:    log,
		logger: logger,
	}
}

// Create builds a room with its own engine instance for the given rules.
func (s *Store) Create(rules engine.Rules) *Room {
	id := uuid.New()
	r := newRoom(id, engine.New(rules), s.log, s.logger)
	r.OnFinish = s.OnFinish
	s.mu.Lock()
	s.rooms[id] = r
	s.ordered = append(s.ordered, id)
	s.mu.Unlock()
	return r
}

func (s *Store) Get(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// FirstWaiting returns the oldest waiting room with an open seat, if any.
func (s *Store) FirstWaiting() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.ordered {
		r, ok := s.rooms[id]
		if !ok {
			continue
		}
		st := r.Snapshot()
		if st.Phase == models.PhaseWaiting && (st.Player1ID == uuid.Nil || st.Player2ID == uuid.Nil) {
			return r
		}
	}
	return nil
}

// Delete tears the room down, releasing its action log and sessions.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	delete(s.rooms, id)
	for i, oid := range s.ordered {
		if oid == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.log.DropRoom(id)
	if s.OnTeardown != nil {
		s.OnTeardown(id)
	}
}

// SweepIdle tears down rooms with no live session heartbeat. Rooms get a
// grace period after creation so an empty lobby is not reaped instantly.
func (s *Store) SweepIdle(active func(roomID uuid.UUID) bool, grace time.Duration) {
	s.mu.Lock()
	candidates := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		candidates = append(candidates, r)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, r := range candidates {
		if now.Sub(r.CreatedAt) < grace {
			continue
		}
		if r.Failed() || !active(r.ID) {
			s.logger.WithField("room", r.ID).Info("tearing down idle room")
			s.Delete(r.ID)
		}
	}
}

// RunIdleSweep sweeps periodically until stop closes. grace should match
// the session abandonment threshold.
func (s *Store) RunIdleSweep(stop <-chan struct{}, active func(roomID uuid.UUID) bool, grace time.Duration) {
	t := time.NewTicker(IdleSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.SweepIdle(active, grace)
		case <-stop:
			return
		}
	}
}

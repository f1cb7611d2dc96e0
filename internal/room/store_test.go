// internal/room/store_test.go
package room

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/engine"
	"github.com/jason-s-yu/cassino/internal/models"
)

func newTestStore() *Store {
	return NewStore(actionlog.New(), logrus.New())
}

func TestFirstWaitingPrefersOldestOpenRoom(t *testing.T) {
	s := newTestStore()
	first := s.Create(engine.Rules{})
	second := s.Create(engine.Rules{})

	assert.Equal(t, first.ID, s.FirstWaiting().ID)

	// Fill the first room; matchmaking moves on to the second.
	_, err := first.Join(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, first.ID, s.FirstWaiting().ID, "one open seat still counts")
	_, err = first.Join(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, second.ID, s.FirstWaiting().ID)

	// Fill the second too: nothing waiting.
	_, err = second.Join(uuid.New())
	require.NoError(t, err)
	_, err = second.Join(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, s.FirstWaiting())
}

func TestDeleteReleasesLogAndSessions(t *testing.T) {
	log := actionlog.New()
	s := NewStore(log, logrus.New())
	rm := s.Create(engine.Rules{})

	var torn []uuid.UUID
	s.OnTeardown = func(id uuid.UUID) { torn = append(torn, id) }

	p := uuid.New()
	_, err := rm.Join(p)
	require.NoError(t, err)

	s.Delete(rm.ID)

	_, ok := s.Get(rm.ID)
	assert.False(t, ok)
	_, ok = log.ReplaySince(rm.ID, 0)
	assert.False(t, ok, "the room's history must be dropped")
	assert.Equal(t, []uuid.UUID{rm.ID}, torn)
}

func TestCreateInstallsFinishHook(t *testing.T) {
	s := newTestStore()
	s.OnFinish = func(*models.RoomState, uuid.UUID) {}
	rm := s.Create(engine.Rules{})
	assert.NotNil(t, rm.OnFinish)
}

func TestDeleteCompactsCreationOrder(t *testing.T) {
	s := newTestStore()
	first := s.Create(engine.Rules{})
	second := s.Create(engine.Rules{})
	third := s.Create(engine.Rules{})

	s.Delete(second.ID)

	s.mu.Lock()
	assert.Equal(t, []uuid.UUID{first.ID, third.ID}, s.ordered)
	s.mu.Unlock()

	s.Delete(first.ID)
	assert.Equal(t, third.ID, s.FirstWaiting().ID)

	s.Delete(third.ID)
	s.mu.Lock()
	assert.Empty(t, s.ordered)
	s.mu.Unlock()
	assert.Nil(t, s.FirstWaiting())
}

func TestSweepIdleRespectsActivityAndGrace(t *testing.T) {
	s := newTestStore()
	idle := s.Create(engine.Rules{})
	live := s.Create(engine.Rules{})
	fresh := s.Create(engine.Rules{})
	fresh.CreatedAt = time.Now() // inside the grace window

	idle.CreatedAt = time.Now().Add(-time.Hour)
	live.CreatedAt = time.Now().Add(-time.Hour)

	s.SweepIdle(func(roomID uuid.UUID) bool { return roomID == live.ID }, 30*time.Minute)

	_, ok := s.Get(idle.ID)
	assert.False(t, ok)
	_, ok = s.Get(live.ID)
	assert.True(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok, "freshly created rooms get a grace period")
}

func TestSweepIdleReapsFailedRooms(t *testing.T) {
	s := newTestStore()
	rm := s.Create(engine.Rules{})
	rm.CreatedAt = time.Now().Add(-time.Hour)
	rm.mu.Lock()
	rm.failed = true
	rm.mu.Unlock()

	s.SweepIdle(func(uuid.UUID) bool { return true }, 0)
	_, ok := s.Get(rm.ID)
	assert.False(t, ok)
}

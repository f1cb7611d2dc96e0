// internal/session/manager.go

// Package session issues and validates per-seat session tokens and tracks
// liveness. A token is a JWT signed with HMAC-SHA256 over the player, room,
// and issue time; golang-jwt verifies the MAC in constant time. Session
// records are keyed by the SHA-256 of the token, never the token itself.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrExpired = errors.New("session expired")
	ErrInvalid = errors.New("session token invalid")
	ErrUnknown = errors.New("session unknown")
)

const (
	// TTL is the hard session lifetime.
	TTL = 24 * time.Hour
	// AbandonAfter marks a session abandoned with no heartbeat, freeing
	// the seat. Distinct from explicit leave, which is immediate.
	AbandonAfter = 5 * time.Minute
	// SweepInterval is how often the background sweep runs.
	SweepInterval = time.Minute
)

// Session is the server-side record behind one issued token.
type Session struct {
	PlayerID        uuid.UUID
	RoomID          uuid.UUID
	IssuedAt        time.Time
	ExpiresAt       time.Time
	LastHeartbeat   time.Time
	ConnectionCount int
}

// OnAbandonFunc frees the abandoned player's seat.
type OnAbandonFunc func(roomID, playerID uuid.UUID)

// Manager owns all session records. It never touches room state directly;
// seat handling on abandonment goes through the OnAbandon callback.
type Manager struct {
	mu       sync.Mutex
	secret   []byte
	sessions map[string]*Session // keyed by sha256 hex of the token

	OnAbandon OnAbandonFunc
	Logger    *logrus.Logger

	now func() time.Time
}

func NewManager(secret []byte, logger *logrus.Logger) *Manager {
	return &Manager{
		secret:   secret,
		sessions: make(map[string]*Session),
		Logger:   logger,
		now:      time.Now,
	}
}

// Create issues a token for a seated player and records the session.
func (m *Manager) Create(playerID, roomID uuid.UUID) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":  playerID.String(),
		"room": roomID.String(),
		"iat":  now.Unix(),
		"exp":  now.Add(TTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenKey(token)] = &Session{
		PlayerID:      playerID,
		RoomID:        roomID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(TTL),
		LastHeartbeat: now,
	}
	return token, nil
}

// Validate checks the token signature and expiry and returns the live
// session record. Rejects with ErrInvalid (bad MAC or malformed),
// ErrExpired, or ErrUnknown (valid token, no record, e.g. after leave).
func (m *Manager) Validate(token string) (Session, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpired
		}
		return Session{}, ErrInvalid
	}
	if !t.Valid {
		return Session{}, ErrInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenKey(token)]
	if !ok {
		return Session{}, ErrUnknown
	}
	if m.now().After(s.ExpiresAt) {
		delete(m.sessions, tokenKey(token))
		return Session{}, ErrExpired
	}
	return *s, nil
}

// Heartbeat refreshes the session's liveness. Idempotent: repeated beats
// only move LastHeartbeat forward.
func (m *Manager) Heartbeat(token string) error {
	if _, err := m.Validate(token); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tokenKey(token)]; ok {
		s.LastHeartbeat = m.now()
	}
	return nil
}

// Touch refreshes liveness for a known token without re-verifying the JWT.
// Called on every authorized REST request so a polling client that never
// opens a socket still counts as present.
func (m *Manager) Touch(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tokenKey(token)]; ok {
		s.LastHeartbeat = m.now()
	}
}

// Connect and Disconnect track concurrent connections on one session, so
// reloading a tab does not look like abandonment.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tokenKey(token)]; ok {
		s.ConnectionCount++
		s.LastHeartbeat = m.now()
	}
}

func (m *Manager) Disconnect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tokenKey(token)]; ok && s.ConnectionCount > 0 {
		s.ConnectionCount--
	}
}

// Invalidate drops the session immediately (explicit leave).
func (m *Manager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenKey(token))
}

// InvalidateRoom drops every session belonging to a torn-down room.
func (m *Manager) InvalidateRoom(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.sessions {
		if s.RoomID == roomID {
			delete(m.sessions, k)
		}
	}
}

// RoomActive reports whether any session for the room has heartbeat
// within the abandonment threshold. Used by the idle-room sweep.
func (m *Manager) RoomActive(roomID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, s := range m.sessions {
		if s.RoomID == roomID && now.Sub(s.LastHeartbeat) < AbandonAfter {
			return true
		}
	}
	return false
}

// Sweep expires sessions past their TTL and detects abandoned ones,
// invoking OnAbandon so the seat is freed.
func (m *Manager) Sweep() {
	now := m.now()
	type abandoned struct{ room, player uuid.UUID }
	var freed []abandoned

	m.mu.Lock()
	for k, s := range m.sessions {
		switch {
		case now.After(s.ExpiresAt):
			delete(m.sessions, k)
			freed = append(freed, abandoned{s.RoomID, s.PlayerID})
		case s.ConnectionCount == 0 && now.Sub(s.LastHeartbeat) > AbandonAfter:
			delete(m.sessions, k)
			freed = append(freed, abandoned{s.RoomID, s.PlayerID})
		}
	}
	m.mu.Unlock()

	for _, a := range freed {
		if m.Logger != nil {
			m.Logger.WithFields(logrus.Fields{
				"room":   a.room,
				"player": a.player,
			}).Info("session expired or abandoned, freeing seat")
		}
		if m.OnAbandon != nil {
			m.OnAbandon(a.room, a.player)
		}
	}
}

// Run sweeps periodically until the stop channel closes.
func (m *Manager) Run(stop <-chan struct{}) {
	t := time.NewTicker(SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Sweep()
		case <-stop:
			return
		}
	}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

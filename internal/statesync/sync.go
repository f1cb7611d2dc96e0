// internal/statesync/sync.go

// Package statesync makes every accepted mutation observable identically by
// all clients: it stamps the authoritative state with a monotonic version
// and a checksum of its canonical serialization, and wraps the full state
// in the broadcast envelope. Clients compare their held (version, checksum)
// pair against the authoritative one to detect desync.
package statesync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/models"
)

// EnvelopeType is the type tag on every state broadcast.
const EnvelopeType = "game_state_update"

// Envelope always carries the full authoritative state, never a bare
// notification that would force clients into fragile re-fetches.
type Envelope struct {
	Type      string            `json:"type"`
	RoomID    uuid.UUID         `json:"room_id"`
	Version   int64             `json:"version"`
	Checksum  string            `json:"checksum"`
	GameState *models.RoomState `json:"game_state"`
}

// Stamp increments the version (exactly once per accepted mutation) and
// recomputes the checksum over the updated state.
func Stamp(st *models.RoomState) {
	st.Version++
	st.Checksum = Checksum(st)
}

// Checksum is the hex SHA-256 of the state's canonical JSON encoding. The
// encoding is field-order stable (struct order) and the checksum field
// itself is zeroed while hashing so the value is reproducible from any
// received state.
func Checksum(st *models.RoomState) string {
	shadow := *st
	shadow.Checksum = ""
	data, err := json.Marshal(&shadow)
	if err != nil {
		// RoomState contains nothing unmarshalable; this cannot happen.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewEnvelope wraps a stamped snapshot for broadcast. The snapshot must
// already be cloned out of the room's lock.
func NewEnvelope(st *models.RoomState) Envelope {
	return Envelope{
		Type:      EnvelopeType,
		RoomID:    st.RoomID,
		Version:   st.Version,
		Checksum:  st.Checksum,
		GameState: st,
	}
}

// Diverged reports whether a client-held (version, checksum) pair no
// longer matches the authoritative state, meaning the client must resync.
func Diverged(st *models.RoomState, version int64, checksum string) bool {
	return st.Version != version || st.Checksum != checksum
}

// internal/database/actionlog.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/models"
)

// InsertActionLogEntry persists one accepted action. The unique constraint
// on (room_id, action_id) makes the insert idempotent with the in-memory
// dedup, so an async retry after a replayed submit is a no-op.
func InsertActionLogEntry(ctx context.Context, e actionlog.Entry) error {
	q := `
		INSERT INTO room_actions (room_id, sequence, action_id, player_id, action, resulting_version, appended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, action_id) DO NOTHING
	`
	if _, err := DB.Exec(ctx, q, e.RoomID, e.Sequence, e.ActionID, e.PlayerID, e.Action, e.ResultingVersion, e.AppendedAt); err != nil {
		return fmt.Errorf("insert room action: %w", err)
	}
	return nil
}

// RecordGameResult upserts the final outcome of a finished room.
func RecordGameResult(ctx context.Context, roomID uuid.UUID, st *models.RoomState, winner uuid.UUID) error {
	q := `
		INSERT INTO game_results (room_id, player1_id, player2_id, player1_score, player2_score, winner_id, rounds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id)
		DO UPDATE SET player1_score=$4, player2_score=$5, winner_id=$6, rounds=$7
	`
	var winnerArg interface{}
	if winner != uuid.Nil {
		winnerArg = winner
	}
	if _, err := DB.Exec(ctx, q, roomID, st.Player1ID, st.Player2ID, st.Player1Score, st.Player2Score, winnerArg, st.Round); err != nil {
		return fmt.Errorf("upsert game result: %w", err)
	}
	return nil
}

// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/cassino/internal/actionlog"
	"github.com/jason-s-yu/cassino/internal/broker"
	"github.com/jason-s-yu/cassino/internal/cache"
	"github.com/jason-s-yu/cassino/internal/database"
	"github.com/jason-s-yu/cassino/internal/handlers"
	"github.com/jason-s-yu/cassino/internal/middleware"
	"github.com/jason-s-yu/cassino/internal/models"
	"github.com/jason-s-yu/cassino/internal/room"
	"github.com/jason-s-yu/cassino/internal/session"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("SESSION_SECRET must be set")
	}

	actionLog := actionlog.New()

	// Postgres and Redis are optional: without them the action log is
	// memory-only and rooms still run.
	if os.Getenv("PG_HOST") != "" {
		database.ConnectDB()
		actionLog.Persist = func(ctx context.Context, e actionlog.Entry) error {
			if err := database.InsertActionLogEntry(ctx, e); err != nil {
				logger.WithError(err).Warn("failed to persist action log entry")
				return err
			}
			return nil
		}
	}
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			log.Fatalf("redis connect error: %v", err)
		}
		actionLog.Publish = func(ctx context.Context, e actionlog.Entry) error {
			rec := cache.ActionRecord{
				RoomID:           e.RoomID,
				Sequence:         e.Sequence,
				ActionID:         e.ActionID,
				PlayerID:         e.PlayerID,
				Action:           e.Action,
				ResultingVersion: e.ResultingVersion,
				Timestamp:        e.AppendedAt.Unix(),
			}
			if err := cache.PublishAction(ctx, rec); err != nil {
				logger.WithError(err).Warn("failed to publish action to historian queue")
				return err
			}
			return nil
		}
	}

	sessions := session.NewManager([]byte(secret), logger)
	rooms := room.NewStore(actionLog, logger)
	b := broker.New(logger)
	srv := handlers.NewServer(logger, rooms, sessions, b)

	sessions.OnAbandon = func(roomID, playerID uuid.UUID) {
		if rm, ok := rooms.Get(roomID); ok {
			rm.FreeSeat(playerID)
		}
	}
	rooms.OnTeardown = func(roomID uuid.UUID) {
		sessions.InvalidateRoom(roomID)
	}
	if database.DB != nil {
		rooms.OnFinish = func(final *models.RoomState, winner uuid.UUID) {
			if err := database.RecordGameResult(context.Background(), final.RoomID, final, winner); err != nil {
				logger.WithError(err).Warn("failed to record game result")
			}
		}
	}

	stop := make(chan struct{})
	go sessions.Run(stop)
	go rooms.RunIdleSweep(stop, sessions.RoomActive, session.AbandonAfter)

	mux := http.NewServeMux()
	srv.Routes(mux)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/serenitygrove/membership-api/internal/api"
	"github.com/serenitygrove/membership-api/internal/infrastructure/config"
	mongodb "github.com/serenitygrove/membership-api/internal/infrastructure/db/mongo"
	redisdb "github.com/serenitygrove/membership-api/internal/infrastructure/db/redis"
	"github.com/serenitygrove/membership-api/pkg/logger"
)

const sessionSweepInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fallback := logger.Init("info", false)
		fallback.Fatal().Err(err).Msg("configuration")
	}

	log := logger.Init(cfg.LogLevel, cfg.Development())

	client, db, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect")
		}
	}()

	rdb, err := redisdb.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection")
	}
	defer rdb.Close()

	if err := ensureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("index creation")
	}

	e := api.NewRouter(client, db, rdb, cfg, log)

	go sweepSessions(ctx, db, log)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("membership api started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	type indexer interface {
		EnsureIndexes(ctx context.Context) error
	}
	repos := []indexer{
		mongodb.NewUserRepository(db),
		mongodb.NewMagicLinkRepository(db),
		mongodb.NewSessionRepository(db),
		mongodb.NewAuditRepository(db),
		mongodb.NewAttendanceRepository(db),
		mongodb.NewAssignmentRepository(db),
	}
	for _, r := range repos {
		if err := r.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sweepSessions periodically flips expired sessions to inactive. Expiry is
// enforced on every read regardless; the sweep only keeps the collection
// from accumulating stale active rows.
func sweepSessions(ctx context.Context, db *mongo.Database, log zerolog.Logger) {
	sessions := mongodb.NewSessionRepository(db)
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeactivateExpired(ctx, time.Now().UTC())
			if err != nil {
				log.Error().Err(err).Msg("session sweep")
				continue
			}
			if n > 0 {
				log.Info().Int64("deactivated", n).Msg("session sweep")
			}
		}
	}
}

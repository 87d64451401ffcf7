package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal/config"
	"github.com/tabletrouble/spyx-backend/internal/db"
	"github.com/tabletrouble/spyx-backend/internal/game"
	"github.com/tabletrouble/spyx-backend/internal/server"
	"github.com/tabletrouble/spyx-backend/internal/store"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("connected to database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	roomStore := store.NewRedisStore(redisClient)
	dbStore := db.NewStore(database)

	registry := game.NewRegistry()
	broadcaster := game.NewBroadcaster(registry)
	watcher := game.NewExpiryWatcher(roomStore, registry, broadcaster)
	defer watcher.Stop()

	engine := game.NewRoleEngine(rand.NewSource(time.Now().UnixNano()))
	rooms := game.NewRooms(roomStore, dbStore, registry, broadcaster, watcher, engine, cfg.RoomTTL)

	socket := game.NewSocketHandler(rooms)
	srv := server.New(rooms, dbStore, socket, cfg.AllowedOrigin)
	httpServer := srv.NewHTTPServer(":" + cfg.Port)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server running")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

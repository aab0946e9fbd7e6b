package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leaddesk/internal/chatbot"
	"leaddesk/internal/config"
	"leaddesk/internal/database"
	"leaddesk/internal/events"
	"leaddesk/internal/router"
	"leaddesk/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	// config + logger
	cfg := config.Load()
	l := logger.New(cfg.Env)

	// db
	pool, err := database.Open(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()
	if err := database.Migrate(context.Background(), pool); err != nil {
		l.Fatal().Err(err).Msg("migration failed")
	}

	// redis (optional) + message broker
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			l.Fatal().Err(err).Msg("redis connect failed")
		}
		l.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	}
	broker := events.NewBroker(rdb, l)
	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()
	go broker.Run(brokerCtx)

	// chatbot
	var responder chatbot.Responder = chatbot.Canned{}
	if cfg.OpenAIKey != "" {
		responder = chatbot.NewOpenAI(cfg.OpenAIKey)
		l.Info().Msg("openai responder enabled")
	} else {
		l.Warn().Msg("OPENAI_API_KEY unset, using canned responder")
	}

	// http
	r := router.New(l, pool, broker, responder, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Info().Msg("shutdown complete")
}

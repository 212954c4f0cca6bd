package main

import (
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/cocogogo0101-tech/CueBot/internal/bot"
	"github.com/cocogogo0101-tech/CueBot/internal/cache"
	"github.com/cocogogo0101-tech/CueBot/internal/config"
	"github.com/cocogogo0101-tech/CueBot/internal/database"
	"github.com/cocogogo0101-tech/CueBot/internal/logging"
	"github.com/cocogogo0101-tech/CueBot/internal/metrics"
	"github.com/cocogogo0101-tech/CueBot/internal/redis"
	"github.com/cocogogo0101-tech/CueBot/internal/store"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Token == "" {
		log.Fatal("TOKEN not set")
	}

	logger, err := logging.New(os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	st := store.Open(cfg.StorePath, cfg.StoreKey, cfg.EncryptStore, logger)

	// Redis and Postgres are optional warm layers; everything degrades to
	// the local store without them.
	var rdb *redis.Client
	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		rdb, err = redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without it", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	lookupCache, err := cache.New(rdb, cache.Config{})
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	defer lookupCache.Close()

	var archive *database.Archive
	if cfg.Postgres != nil && cfg.Postgres.Host != "" {
		archive, err = database.Open(cfg.Postgres.DSN(), logger)
		if err != nil {
			logger.Warn("postgres unavailable, audit mirroring disabled", zap.Error(err))
			archive = nil
		} else {
			defer archive.Close()
		}
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("metrics listener starting", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, m.Handler()); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	b, err := bot.New(cfg, st, rdb, lookupCache, archive, m, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := b.Start(); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/arena"
	"github.com/cryptods8/openframedl-sub001/internal/chain"
	"github.com/cryptods8/openframedl-sub001/internal/config"
	"github.com/cryptods8/openframedl-sub001/internal/database"
	"github.com/cryptods8/openframedl-sub001/internal/freeze"
	"github.com/cryptods8/openframedl-sub001/internal/game"
	"github.com/cryptods8/openframedl-sub001/internal/httpserver"
	"github.com/cryptods8/openframedl-sub001/internal/leaderboard"
	"github.com/cryptods8/openframedl-sub001/internal/notify"
	"github.com/cryptods8/openframedl-sub001/internal/repository"
	"github.com/cryptods8/openframedl-sub001/internal/store"
	"github.com/cryptods8/openframedl-sub001/internal/streak"
	"github.com/cryptods8/openframedl-sub001/internal/wallet"
	"github.com/cryptods8/openframedl-sub001/internal/words"
)

// backend is every persistence port the engines need.
type backend interface {
	game.Store
	arena.Store
	freeze.Store
	streak.History
	leaderboard.Source
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg)

	list, err := words.Load(cfg.WordsAnswersFile, cfg.WordsAllowedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	answers, allowed := list.Stats()
	log.Info().Int("answers", answers).Int("allowed", allowed).Msg("word lists loaded")

	st, closeStore := openBackend(cfg)
	defer closeStore()

	if cfg.ChainRPCURL == "" || cfg.FreezeContract == "" {
		log.Warn().Msg("CHAIN_RPC_URL or FREEZE_CONTRACT_ADDRESS not set, freeze verification will fail")
	}
	verifier := chain.NewRPCVerifier(cfg.ChainRPCURL, cfg.FreezeContract, cfg.FreezeTokenID, cfg.ChainTimeout)
	wallets := wallet.NewResolver(cfg.WalletResolverURL, cfg.ChainTimeout)
	notifier := notify.Batched{Next: notify.LogDispatcher{}, Size: cfg.NotifyBatchSize}

	games := game.NewEngine(st, list)
	srv := httpserver.New(httpserver.Deps{
		Config:  cfg,
		Words:   list,
		Games:   games,
		Arenas:  arena.NewEngine(st, games, list, list, notifier),
		Streaks: streak.NewEngine(st),
		Freezes: freeze.NewLedger(st, st, verifier, wallets, freeze.NewSigner(cfg.ClaimSigningKey), freeze.Options{
			MilestoneInterval: cfg.FreezeMilestone,
			MaxConsecutive:    cfg.FreezeMaxConsecutive,
		}),
		Ranker: leaderboard.NewRanker(st, leaderboardCache(cfg), cfg.LeaderboardCacheTTL, cfg.LeaderboardTopN),
	})

	log.Info().Str("port", cfg.ServerPort).Str("db", cfg.DatabaseType).Msg("starting framedl server")
	if err := srv.Start(":" + cfg.ServerPort); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openBackend returns the in-memory store for DB_TYPE=memory, otherwise the
// SQL repositories over a migrated database.
func openBackend(cfg *config.Config) (backend, func()) {
	if strings.EqualFold(cfg.DatabaseType, "memory") {
		log.Warn().Msg("using in-memory store, state is lost on restart")
		return store.NewMemory(), func() {}
	}
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.DatabaseType).Msg("failed to open database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	return repository.New(db), func() { _ = db.Close() }
}

// leaderboardCache connects to Redis when REDIS_ADDR is set. An unreachable
// Redis disables caching instead of failing startup.
func leaderboardCache(cfg *config.Config) leaderboard.Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, leaderboard cache disabled")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("leaderboard cache enabled")
	return leaderboard.NewRedisCache(client)
}

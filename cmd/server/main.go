package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/hackhub-io/hackchat/internal/api"
	"github.com/hackhub-io/hackchat/internal/config"
	"github.com/hackhub-io/hackchat/internal/database"
	"github.com/hackhub-io/hackchat/internal/feed"
	"github.com/hackhub-io/hackchat/internal/presence"
	"github.com/hackhub-io/hackchat/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	natsURL        string
	redisAddr      string
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional, flags and the environment take over when absent
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("HACKCHAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("HACKCHAT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("HACKCHAT_SIGNING_KEY"), "base64 encoded signing key")
	flag.StringVar(&natsURL, "nats-url", os.Getenv("HACKCHAT_NATS_URL"), "NATS server URL, empty runs the in-process feed")
	flag.StringVar(&redisAddr, "redis-addr", os.Getenv("HACKCHAT_REDIS_ADDR"), "redis address, empty runs in-memory occupancy")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 && os.Getenv("HACKCHAT_ALLOWED_ORIGINS") != "" {
		allowedOrigins = strings.Split(os.Getenv("HACKCHAT_ALLOWED_ORIGINS"), ",")
	}

	logger := log.New(os.Stderr, "[hackchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, natsURL, redisAddr)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgHackChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	var fd feed.Feed
	if cfg.NatsURL != "" {
		natsFeed, err := feed.NewNatsFeed(logger, cfg.NatsURL)
		if err != nil {
			logger.Fatal("nats feed:", err)
		}
		fd = natsFeed
	} else {
		fd = feed.NewMemoryFeed(logger)
	}
	defer func() {
		if err := fd.Close(); err != nil {
			logger.Println("feed close:", err)
		}
	}()

	var occ presence.Occupancy
	if cfg.RedisAddr != "" {
		redisOcc := presence.NewRedisOccupancy(cfg.RedisAddr)
		defer func() {
			if err := redisOcc.Close(); err != nil {
				logger.Println("redis close:", err)
			}
		}()
		occ = redisOcc
	} else {
		occ = presence.NewMemoryOccupancy()
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	srv, err := api.NewHackChatApp(mux, logger, dbConn, fd, occ, statsUpdater, cfg)
	if err != nil {
		logger.Fatal("new app:", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

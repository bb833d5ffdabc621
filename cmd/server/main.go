package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/quietdawn/supportchat/internal/api"
	"github.com/quietdawn/supportchat/internal/config"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/presence"
	"github.com/quietdawn/supportchat/internal/server"
	"github.com/redis/go-redis/v9"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	redisAddr      string
	signingKey     string
	allowedOrigins stringSliceFlag
	tokenTTL       time.Duration
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", "", "redis address for the presence store, empty disables it")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&tokenTTL, "token-ttl", 0, "session token lifetime, defaults to 168h")
	flag.Parse()

	logger := log.New(os.Stderr, "[supportchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisAddr, signingKey, allowedOrigins, tokenTTL)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	var presenceStore *presence.Store
	if cfg.RedisAddr != "" {
		presenceStore = presence.NewStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		defer func() {
			if err := presenceStore.Close(); err != nil {
				logger.Println("presence close:", err)
			}
		}()
	}

	promStats := metrics.NewPromStats()

	chatServer, err := server.NewChatServer(logger, db, promStats, presenceStore)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	app := api.NewSupportChatApp(logger, chatServer, db, promStats, presenceStore, cfg, promStats.Handler())

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
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

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	chatServer.Shutdown()

	logger.Println("shutdown complete")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nhatm/estate-ledger/internal/adapter/handler"
	"github.com/nhatm/estate-ledger/internal/adapter/storage"
	"github.com/nhatm/estate-ledger/internal/core/service"
	"github.com/nhatm/estate-ledger/internal/scheduler"
)

type config struct {
	httpAddr      string
	mysqlDSN      string
	redisAddr     string
	sweepInterval time.Duration
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := config{
		httpAddr:      getenv("HTTP_ADDR", ":8080"),
		mysqlDSN:      getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/estateledger?parseTime=true"),
		redisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		sweepInterval: 15 * time.Minute,
	}
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid SWEEP_INTERVAL %q: %v", raw, err)
		}
		cfg.sweepInterval = d
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL (applies migrations)
	db, err := storage.NewDB(cfg.mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Adapters
	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	// Services
	accounts := service.NewAccountService(store, cache)
	trades := service.NewTradeService(store, cache)
	catalog := service.NewCatalogService(store)
	governance := service.NewGovernanceService(store)
	payouts := service.NewPayoutService(store, service.PayoutConfig{})
	snapshots := service.NewSnapshotService(store, service.SnapshotConfig{})

	// Background passes
	sched := scheduler.New(store, cache, payouts, snapshots, cfg.sweepInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	// HTTP server
	httpHandler := handler.NewHTTPHandler(accounts, trades, catalog, governance)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	sched.Stop()
	log.Println("scheduler stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

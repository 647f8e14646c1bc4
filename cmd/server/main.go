package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/api"
	"github.com/edalik/electronics-store-user-service/internal/config"
	"github.com/edalik/electronics-store-user-service/internal/handler"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/auth"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/kafka"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/observability"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/redis"
	core "github.com/edalik/electronics-store-user-service/internal/repository/postgres"
	service "github.com/edalik/electronics-store-user-service/internal/services"
	"github.com/edalik/electronics-store-user-service/migrations"
)

func main() {
	// Monetary amounts serialize as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true

	shutdownTracing := observability.Setup("user-service")
	defer shutdownTracing(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Embed)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set migration dialect: %v", err)
	}
	if err := goose.Up(db, "."); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := core.NewPostgresUserRepository(db, cfg.LockTimeout)
	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	userSvc := service.NewUserService(userRepo, redisClient, producer, cfg.JWTSecret)
	balanceSvc := service.NewBalanceService(userRepo, redisClient, producer)

	var resolver auth.Resolver = auth.HeaderResolver{}
	if cfg.AuthMode == config.AuthModeJWT {
		resolver = auth.ContextResolver{}
	}

	h := handler.NewHandler(userSvc, balanceSvc, resolver, cfg.AuthMode)
	router := api.SetupRouter(h, cfg)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}

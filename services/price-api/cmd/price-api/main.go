package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
	"pricewatch/libs/database"
	"pricewatch/libs/observability"
	"pricewatch/services/price-api/internal/config"
	httpapi "pricewatch/services/price-api/internal/infra/http"
	"pricewatch/services/price-api/internal/query"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("price-api: config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = cfg.DatabaseDSN
	db, err := database.ConnectWithMigrations(ctx, dbCfg, cfg.MigrationsPath)
	if err != nil {
		log.Fatalf("price-api: database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	registry := observability.NewRegistry()
	svc := &query.Service{
		Catalog: catalog.NewPostgresStore(db.DB),
		Archive: archiveclient.New(cfg.BaseURL, redisClient),
		Metrics: query.NewMetrics(registry),
	}

	server := httpapi.NewServer(svc, registry)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	log.Printf("price-api: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/caldate"
	"pricewatch/libs/catalog"
	"pricewatch/libs/database"
	"pricewatch/libs/observability"
	"pricewatch/services/price-ingest/internal/config"
	"pricewatch/services/price-ingest/internal/ingest"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("price-ingest: config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = observability.WithRunInfo(ctx, observability.RunInfo{
		RunID:  observability.NewRunID(),
		TaskID: "ingest",
	})

	dbCfg := database.DefaultConfig()
	dbCfg.DSN = cfg.DatabaseDSN
	db, err := database.ConnectWithMigrations(ctx, dbCfg, cfg.MigrationsPath)
	if err != nil {
		log.Fatalf("price-ingest: database: %v", err)
	}
	defer db.Close()

	locker := ingest.Locker(ingest.NoopLocker{})
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		locker = ingest.NewRedisLocker(redisClient)
	}

	driver := &ingest.Driver{
		Archive:     archiveclient.New(cfg.BaseURL, redisClient),
		Catalog:     catalog.NewPostgresStore(db.DB),
		Lock:        locker,
		Concurrency: cfg.Concurrency,
	}

	date := cfg.Date
	if date == "" {
		date = resolveDefaultDate(ctx, driver.Archive.(*archiveclient.Client))
	}

	summary, err := driver.Ingest(ctx, date, cfg.Force)
	if err != nil {
		observability.LogEvent(ctx, "error", "ingest_failed", map[string]any{"date": date, "error": err.Error()})
		os.Exit(1)
	}

	log.Printf("price-ingest: date=%s no_op=%v chains_tried=%d chains_failed=%d stores=%d products=%d prices=%d",
		summary.Date, summary.NoOp, summary.ChainsTried, summary.ChainsFailed, summary.StoreCount, summary.ProductCount, summary.PriceCount)
}

// resolveDefaultDate picks the most recent archive the upstream lists; on
// a list failure it falls back to today's date in the publishing locale,
// per spec.md §6.
func resolveDefaultDate(ctx context.Context, client *archiveclient.Client) string {
	archives, err := client.ListArchives(ctx)
	if err != nil || len(archives) == 0 {
		return caldate.Today(ctx)
	}
	return archives[0].Date
}

package main

import (
	"context"
	"flag"
	"log"

	"github.com/vkoshel/crmdata/importer/internal/config"
	"github.com/vkoshel/crmdata/importer/internal/database"
	"github.com/vkoshel/crmdata/importer/internal/migrations"
	"github.com/vkoshel/crmdata/importer/internal/notify"
	"github.com/vkoshel/crmdata/importer/internal/pipeline"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	clearTables := flag.Bool("clear", false, "truncate all tables instead of running the import")
	debug := flag.Bool("debug", false, "enable query logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}

	ctx := context.Background()

	db, err := database.NewDB(cfg.DatabaseDSN, cfg.Debug)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := migrations.RunMigrations(ctx, db); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout.Std())
	}

	runner := pipeline.NewRunner(db, cfg, status.NewRegister(), notifier)

	if *clearTables {
		if err := runner.ClearAll(ctx); err != nil {
			log.Fatalf("clear tables: %v", err)
		}
		log.Printf("All tables cleared")
		return
	}

	result, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("run pipeline: %v", err)
	}
	if !result.Success {
		log.Fatalf("import failed: %s", result.Message)
	}
	log.Printf("%s", result.Message)
}

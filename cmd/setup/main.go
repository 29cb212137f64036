package main

import (
	"context"
	"flag"
	"fmt"

	"streamprime-wallet-go/internal/common"
	"streamprime-wallet-go/internal/config"
	"streamprime-wallet-go/internal/database"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	catalogFlag := flag.String("catalog", "", "Path to the content catalog YAML (default: CATALOG_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if err := config.Validate(cfg, false); err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}

	catalogFile := cfg.Database.CatalogFile
	if *catalogFlag != "" {
		catalogFile = *catalogFlag
	}

	// opening the database creates the schema
	zap.L().Info("Initializing database", zap.String("path", cfg.Database.Path))
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	zap.L().Info("Loading content catalog", zap.String("file", catalogFile))
	items, err := common.LoadCatalog(catalogFile, cfg.Wallet.DefaultPrice)
	if err != nil {
		zap.L().Fatal("Failed to load catalog", zap.Error(err))
	}

	if err := common.SeedCatalog(ctx, dbService, items); err != nil {
		zap.L().Fatal("Failed to seed catalog", zap.Error(err))
	}

	common.PrintHeader("CONTENT CATALOG", common.DefaultWidth)
	active := 0
	for i, item := range items {
		status := "active"
		if item.Active {
			active++
		} else {
			status = "inactive"
		}
		fmt.Printf("%s %-24s %-36s %12s  %s\n",
			common.BoxPrefix(i == len(items)-1), item.Id, item.Title, common.FormatAmount(item.Price), status)
	}
	common.PrintFooter(fmt.Sprintf("Seeded %d videos (%d active) into %s", len(items), active, cfg.Database.Path), common.DefaultWidth)

	zap.L().Info("Setup completed",
		zap.Int("videos", len(items)),
		zap.Int("active", active))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"streamprime-wallet-go/internal/common"
	"streamprime-wallet-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phone := flag.String("phone", "", "Account phone number (required)")
	name := flag.String("name", "", "Display name")
	email := flag.String("email", "", "Email address")
	flag.Parse()

	if *phone == "" {
		fmt.Fprintln(os.Stderr, "Usage: addaccount --phone=9876543210 [--name=NAME] [--email=EMAIL]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if err := config.Validate(cfg, false); err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}

	services, err := common.InitializeLedger(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	account, err := services.Ledger.OpenAccount(ctx, *phone, *name, *email)
	if err != nil {
		zap.L().Fatal("Failed to open account", zap.String("phone", *phone), zap.Error(err))
	}

	balance, err := services.Ledger.Balance(ctx, account.Id)
	if err != nil {
		zap.L().Fatal("Failed to read balance", zap.String("account_id", account.Id), zap.Error(err))
	}

	common.PrintHeader("ACCOUNT", common.DefaultWidth)
	fmt.Printf("✓ %s\n", common.AccountLabel(*account))
	fmt.Printf("%s ID:      %s\n", common.BoxPrefix(false), account.Id)
	fmt.Printf("%s Created: %s\n", common.BoxPrefix(false), account.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s Balance: %s\n", common.BoxPrefix(true), common.FormatAmount(balance))
	common.PrintSeparator("=", common.DefaultWidth)
}

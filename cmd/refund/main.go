package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"streamprime-wallet-go/internal/access"
	"streamprime-wallet-go/internal/common"
	"streamprime-wallet-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phone := flag.String("phone", "", "Phone of the account that made the purchase")
	accountId := flag.String("account", "", "Account id (alternative to --phone)")
	entryId := flag.String("entry", "", "Purchase transaction id to refund (required)")
	reason := flag.String("reason", "manual refund", "Reason recorded on the refund entry")
	flag.Parse()

	if *entryId == "" || (*phone == "" && *accountId == "") {
		fmt.Fprintln(os.Stderr, "Usage: refund --entry=TXN_ID (--phone=PHONE | --account=ID) [--reason=TEXT]")
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

	if *accountId == "" {
		account, err := services.DbService.GetAccountByPhone(ctx, *phone)
		if err != nil {
			zap.L().Fatal("Account not found", zap.String("phone", *phone), zap.Error(err))
		}
		*accountId = account.Id
	}

	engine := access.NewEngine(services.DbService, services.Ledger, cfg.Wallet.ReuseWindow)
	refund, err := engine.RefundPurchase(ctx, *accountId, *entryId, *reason)
	if err != nil {
		fmt.Printf("✗ Refund failed: %v\n", err)
		zap.L().Fatal("Refund failed",
			zap.String("account_id", *accountId),
			zap.String("entry_id", *entryId),
			zap.Error(err))
	}

	common.PrintHeader("REFUND", common.DefaultWidth)
	if refund.Replayed {
		fmt.Println("✓ Purchase was already refunded")
	} else {
		fmt.Println("✓ Purchase refunded")
	}
	fmt.Printf("%s Refund:   %s\n", common.BoxPrefix(false), refund.Id)
	fmt.Printf("%s Purchase: %s\n", common.BoxPrefix(false), *entryId)
	fmt.Printf("%s Amount:   %s\n", common.BoxPrefix(false), common.FormatSigned(refund.Amount))
	fmt.Printf("%s Balance:  %s\n", common.BoxPrefix(true), common.FormatAmount(refund.BalanceAfter))
	common.PrintSeparator("=", common.DefaultWidth)
}

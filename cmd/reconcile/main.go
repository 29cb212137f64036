package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"streamprime-wallet-go/internal/common"
	"streamprime-wallet-go/internal/config"
	"streamprime-wallet-go/internal/models"

	"go.uber.org/zap"
)

type reconcileResult struct {
	checked    int
	mismatched int
	mirrorDiff int
}

func reconcileAccount(ctx context.Context, services *common.LedgerServices, account models.Account, checkMirror bool, isLast bool) (bool, bool) {
	prefix := common.BoxPrefix(isLast)

	if err := services.Ledger.Reconcile(ctx, account.Id); err != nil {
		fmt.Printf("%s ✗ %-32s %v\n", prefix, common.AccountLabel(account), err)
		zap.L().Error("Balance does not match entry log",
			zap.String("account_id", account.Id),
			zap.Error(err))
		return false, false
	}

	balance, err := services.Ledger.Balance(ctx, account.Id)
	if err != nil {
		fmt.Printf("%s ✗ %-32s %v\n", prefix, common.AccountLabel(account), err)
		return false, false
	}

	if !checkMirror || services.Mirror == nil {
		fmt.Printf("%s ✓ %-32s %s\n", prefix, common.AccountLabel(account), common.FormatAmount(balance))
		return true, true
	}

	mirrored, err := services.Mirror.MirroredBalance(ctx, account.Id)
	if err != nil {
		fmt.Printf("%s ✗ %-32s mirror unavailable: %v\n", prefix, common.AccountLabel(account), err)
		return true, false
	}
	if !mirrored.Equal(balance) {
		fmt.Printf("%s ✗ %-32s local %s, mirror %s\n", prefix, common.AccountLabel(account),
			common.FormatAmount(balance), common.FormatAmount(mirrored))
		zap.L().Warn("Mirror balance differs",
			zap.String("account_id", account.Id),
			zap.String("local", balance.String()),
			zap.String("mirror", mirrored.String()))
		return true, false
	}

	fmt.Printf("%s ✓ %-32s %s (mirror agrees)\n", prefix, common.AccountLabel(account), common.FormatAmount(balance))
	return true, true
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phoneFlag := flag.String("phone", "", "Reconcile a single account by phone (optional)")
	mirrorFlag := flag.Bool("mirror", false, "Also compare balances against the Formance ledger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	if *mirrorFlag && !cfg.Formance.Enabled {
		zap.L().Fatal("--mirror requires FORMANCE_ENABLED=true")
	}
	if err := config.Validate(cfg, false); err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}

	services, err := common.InitializeLedger(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	accounts, err := common.SelectAccounts(ctx, services.DbService, *phoneFlag)
	if err != nil {
		zap.L().Fatal("Failed to select accounts", zap.Error(err))
	}

	common.PrintHeader("WALLET RECONCILIATION", common.WideWidth)

	result := reconcileResult{}
	for i, account := range accounts {
		result.checked++
		local, mirror := reconcileAccount(ctx, services, account, *mirrorFlag, i == len(accounts)-1)
		if !local {
			result.mismatched++
		}
		if local && !mirror {
			result.mirrorDiff++
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d accounts checked, %d local mismatches", result.checked, result.mismatched)
	if *mirrorFlag {
		summary += fmt.Sprintf(", %d mirror differences", result.mirrorDiff)
	}
	common.PrintFooter(summary, common.WideWidth)

	if result.mismatched > 0 || result.mirrorDiff > 0 {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}

/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"streamprime-wallet-go/internal/common"
	"streamprime-wallet-go/internal/config"
	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type walletReport struct {
	totalAccounts  int
	fundedAccounts int
	totalBalance   decimal.Decimal
}

func formatEntryId(entryId string) string {
	if entryId == "" {
		return "none"
	}
	if len(entryId) > 8 {
		return entryId[:8] + "..."
	}
	return entryId
}

func printAccountHeader(account models.Account, balance *models.AccountBalance) {
	fmt.Printf("\n┌─ Account: %s\n", common.AccountLabel(account))
	fmt.Printf("│  ID: %s\n", account.Id)
	fmt.Printf("│  Balance: %s (v%d, last_tx: %s, updated: %s)\n",
		common.FormatAmount(balance.Balance),
		balance.Version,
		formatEntryId(balance.LastEntryId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printStats(stats *models.WalletStats) {
	fmt.Printf("│  Recharged: %s in %d payments, spent: %s on %d videos, refunded: %s\n",
		common.FormatAmount(stats.TotalRecharged), stats.RechargeCount,
		common.FormatAmount(stats.TotalSpent), stats.PurchaseCount,
		common.FormatAmount(stats.TotalRefunded))
}

func printEntries(records []models.TransactionRecord) {
	for i, record := range records {
		subject := record.PaymentMethod
		if record.ContentId != "" {
			subject = record.ContentId
		}
		fmt.Printf("%s %-9s %-10s %12s  %-20s %s\n",
			common.BoxPrefix(i == len(records)-1),
			record.Kind,
			record.Status,
			common.FormatSigned(record.Amount),
			subject,
			record.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func processAccount(ctx context.Context, account models.Account, services *common.LedgerServices, recent int) (decimal.Decimal, error) {
	balance, err := services.DbService.GetBalance(ctx, account.Id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	stats, err := services.Ledger.Stats(ctx, account.Id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get stats: %w", err)
	}

	printAccountHeader(account, balance)
	printStats(stats)

	if recent > 0 {
		entries, err := services.DbService.GetEntryHistory(ctx, account.Id, recent, 0)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to get history: %w", err)
		}
		records := make([]models.TransactionRecord, len(entries))
		for i, entry := range entries {
			records[i] = wallet.ToRecord(entry)
		}
		printEntries(records)
	}

	return balance.Balance, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	phoneFlag := flag.String("phone", "", "Filter by specific account phone (optional)")
	recentFlag := flag.Int("recent", 5, "Number of recent transactions to show per account")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	services, err := common.InitializeLedger(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer services.Close()

	accounts, err := common.SelectAccounts(ctx, services.DbService, *phoneFlag)
	if err != nil {
		logger.Fatal("Failed to select accounts", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.WideWidth)

	report := walletReport{totalBalance: decimal.Zero}
	for _, account := range accounts {
		report.totalAccounts++

		balance, err := processAccount(ctx, account, services, *recentFlag)
		if err != nil {
			logger.Error("Failed to process account",
				zap.String("account_id", account.Id),
				zap.String("phone", account.Phone),
				zap.Error(err))
			continue
		}
		if balance.IsPositive() {
			report.fundedAccounts++
		}
		report.totalBalance = report.totalBalance.Add(balance)
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d accounts funded, %s held in wallets",
		report.fundedAccounts, report.totalAccounts, common.FormatAmount(report.totalBalance))
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("accounts_queried", report.totalAccounts),
		zap.Int("funded_accounts", report.fundedAccounts),
		zap.String("total_balance", report.totalBalance.String()))
}

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

package common

import (
	"context"
	"fmt"

	"streamprime-wallet-go/internal/models"

	"go.uber.org/zap"
)

// AccountLister is the lookup the command-line tools share
type AccountLister interface {
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
}

// SelectAccounts returns the account with the given phone, or every account
// when phoneFilter is empty.
func SelectAccounts(ctx context.Context, accounts AccountLister, phoneFilter string) ([]models.Account, error) {
	if phoneFilter != "" {
		zap.L().Info("Looking up account by phone", zap.String("phone", phoneFilter))
		account, err := accounts.GetAccountByPhone(ctx, phoneFilter)
		if err != nil {
			return nil, fmt.Errorf("account not found: %w", err)
		}
		return []models.Account{*account}, nil
	}

	all, err := accounts.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	zap.L().Info("Retrieved accounts", zap.Int("count", len(all)))
	return all, nil
}

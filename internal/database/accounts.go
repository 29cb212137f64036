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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var lastLogin sql.NullTime
	if err := row.Scan(&account.Id, &account.Phone, &account.Name, &account.Email, &account.Active,
		&account.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLogin = &t
	}
	return &account, nil
}

func (s *Service) GetAccounts(ctx context.Context) ([]models.Account, error) {
	zap.L().Debug("Querying active accounts")

	rows, err := s.db.QueryContext(ctx, queryGetActiveAccounts)
	if err != nil {
		zap.L().Error("Failed to query accounts", zap.Error(err))
		return nil, fmt.Errorf("unable to query accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			zap.L().Error("Failed to scan account row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan account row: %w", err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during account row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	zap.L().Info("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

func (s *Service) GetAccountById(ctx context.Context, accountId string) (*models.Account, error) {
	zap.L().Debug("Querying account by ID", zap.String("account_id", accountId))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountById, accountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, accountId)
		}
		zap.L().Error("Failed to query account by ID", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("unable to query account by ID: %w", err)
	}
	return account, nil
}

func (s *Service) GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error) {
	zap.L().Debug("Querying account by phone", zap.String("phone", phone))

	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByPhone, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account with phone %s", models.ErrNotFound, phone)
		}
		zap.L().Error("Failed to query account by phone", zap.String("phone", phone), zap.Error(err))
		return nil, fmt.Errorf("unable to query account by phone: %w", err)
	}
	return account, nil
}

// CreateAccount inserts the account and opens its balance at InitialBalance in
// one transaction. The opening balance is not a ledger entry.
func (s *Service) CreateAccount(ctx context.Context, params store.CreateAccountParams) (*models.Account, error) {
	if params.Phone == "" {
		return nil, &models.ValidationError{Field: "phone", Message: "is required"}
	}
	initial, err := models.ToMinor(params.InitialBalance)
	if err != nil {
		return nil, err
	}
	if initial < 0 {
		return nil, &models.ValidationError{Field: "initial_balance", Message: "cannot be negative"}
	}
	if params.Id == "" {
		params.Id = uuid.New().String()
	}

	zap.L().Info("Creating account", zap.String("id", params.Id), zap.String("phone", params.Phone))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.subledger.stamp(time.Time{})
	result, err := tx.ExecContext(ctx, queryInsertAccount, params.Id, params.Phone, params.Name, params.Email, now, now)
	if err != nil {
		zap.L().Error("Failed to insert account", zap.String("phone", params.Phone), zap.Error(err))
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: account %s already exists", models.ErrDuplicateEntry, params.Id)
		}
		return nil, fmt.Errorf("unable to insert account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: account with phone %s already exists", models.ErrDuplicateEntry, params.Phone)
	}

	if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, params.Id, initial, initial, now); err != nil {
		return nil, fmt.Errorf("unable to open account balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Account created successfully",
		zap.String("id", params.Id),
		zap.String("phone", params.Phone),
		zap.String("initial_balance", params.InitialBalance.String()))

	return &models.Account{
		Id:        params.Id,
		Phone:     params.Phone,
		Name:      params.Name,
		Email:     params.Email,
		Active:    true,
		CreatedAt: now,
	}, nil
}

func (s *Service) TouchLastLogin(ctx context.Context, accountId string, at time.Time) error {
	at = s.subledger.stamp(at)
	result, err := s.db.ExecContext(ctx, queryTouchLastLogin, at, at, accountId)
	if err != nil {
		return fmt.Errorf("unable to update last login: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s", models.ErrNotFound, accountId)
	}
	return nil
}

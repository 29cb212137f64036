package database

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamprime-wallet-go/internal/models"
)

// PutChallenge replaces any challenge already held for the account
func (s *Service) PutChallenge(ctx context.Context, challenge models.Challenge) error {
	_, err := s.db.ExecContext(ctx, queryUpsertChallenge,
		challenge.AccountId, challenge.CodeHash, challenge.IssuedAt.UTC(), challenge.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("unable to store challenge: %w", err)
	}
	return nil
}

// ConsumeChallenge checks codeHash and clears the challenge on success or
// expiry. The read and the delete share one write transaction.
func (s *Service) ConsumeChallenge(ctx context.Context, accountId, codeHash string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var challenge models.Challenge
	err = tx.QueryRowContext(ctx, queryGetChallenge, accountId).
		Scan(&challenge.AccountId, &challenge.CodeHash, &challenge.IssuedAt, &challenge.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNoChallenge
	}
	if err != nil {
		return fmt.Errorf("unable to load challenge: %w", err)
	}

	if now.After(challenge.ExpiresAt) {
		if _, err := tx.ExecContext(ctx, queryDeleteChallenge, accountId); err != nil {
			return fmt.Errorf("unable to clear expired challenge: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return models.ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(challenge.CodeHash), []byte(codeHash)) != 1 {
		return models.ErrInvalidCode
	}

	if _, err := tx.ExecContext(ctx, queryDeleteChallenge, accountId); err != nil {
		return fmt.Errorf("unable to consume challenge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DiscardChallenge withdraws a challenge that was never delivered
func (s *Service) DiscardChallenge(ctx context.Context, accountId, codeHash string) error {
	if _, err := s.db.ExecContext(ctx, queryDiscardChallenge, accountId, codeHash); err != nil {
		return fmt.Errorf("unable to discard challenge: %w", err)
	}
	return nil
}

package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"
)

// expired challenges linger as long as a credential lives, so a late code is
// still reported as expired rather than missing, as it is with the sqlite store
const expiredGrace = DefaultCredentialTTL

var _ store.ChallengeStore = (*RedisChallengeStore)(nil)

// consumeScript checks and consumes a challenge hash in one step.
// Returns 1 on match, 0 when absent, -1 when expired, -2 on mismatch.
var consumeScript = redis.NewScript(`
	local stored = redis.call("HMGET", KEYS[1], "hash", "expires_at")
	if not stored[1] then
		return 0
	end
	if tonumber(ARGV[2]) > tonumber(stored[2]) then
		redis.call("DEL", KEYS[1])
		return -1
	end
	if stored[1] ~= ARGV[1] then
		return -2
	end
	redis.call("DEL", KEYS[1])
	return 1
`)

// discardScript deletes the challenge only while it still holds the given hash
var discardScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], "hash") == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisChallengeStore keeps challenges as Redis hashes that expire on their own
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(ctx context.Context, cfg models.RedisConfig) (*RedisChallengeStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        20,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	zap.L().Info("Redis challenge store connected", zap.String("addr", cfg.Addr))
	return &RedisChallengeStore{client: client}, nil
}

func challengeKey(accountId string) string {
	return fmt.Sprintf("otp:v1:%s", accountId)
}

func (r *RedisChallengeStore) PutChallenge(ctx context.Context, challenge models.Challenge) error {
	key := challengeKey(challenge.AccountId)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"hash", challenge.CodeHash,
		"issued_at", challenge.IssuedAt.UnixMilli(),
		"expires_at", challenge.ExpiresAt.UnixMilli())
	pipe.PExpireAt(ctx, key, challenge.ExpiresAt.Add(expiredGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unable to store challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeStore) ConsumeChallenge(ctx context.Context, accountId, codeHash string, now time.Time) error {
	result, err := consumeScript.Run(ctx, r.client, []string{challengeKey(accountId)}, codeHash, now.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("unable to consume challenge: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return models.ErrNoChallenge
	case -1:
		return models.ErrChallengeExpired
	default:
		return models.ErrInvalidCode
	}
}

func (r *RedisChallengeStore) DiscardChallenge(ctx context.Context, accountId, codeHash string) error {
	if err := discardScript.Run(ctx, r.client, []string{challengeKey(accountId)}, codeHash).Err(); err != nil {
		return fmt.Errorf("unable to discard challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeStore) Close() error {
	return r.client.Close()
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadrail/leadrail/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyActionAccount = "action:account:%s"
	keyActionLock    = "action:lock:%s:%s"
)

// ActionLimiter throttles paid-action traffic per account ahead of the
// ledger. It caps request bursts, not credit spend; the ledger remains the
// source of truth for balances.
type ActionLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewActionLimiter(cfg config.Config) (*ActionLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ActionRate <= 0 || limitCfg.ActionBurst <= 0 {
		return nil, errors.New("action rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &ActionLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.ActionRate,
		burst:   limitCfg.ActionBurst,
		lockTTL: time.Duration(limitCfg.ActionLockTTLSecs) * time.Second,
	}, nil
}

// Enabled reports whether limiting is configured. A nil limiter is a valid
// disabled limiter; every method degrades to allow-all.
func (l *ActionLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ActionLimiter) AllowAccount(ctx context.Context, accountID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyActionAccount, strings.TrimSpace(accountID)), l.rate, l.burst)
}

// LockAction leases one account+action pair so concurrent submissions of
// the same paid action run one at a time. A disabled limiter leases
// nothing and allows everything; a held key returns ok=false.
func (l *ActionLimiter) LockAction(ctx context.Context, accountID, actionKind string) (*Lease, bool, error) {
	if !l.Enabled() {
		return nil, true, nil
	}
	key := fmt.Sprintf(keyActionLock, strings.TrimSpace(accountID), strings.TrimSpace(actionKind))
	lease, err := l.locker.Acquire(ctx, key, l.lockTTL)
	if err != nil {
		return nil, false, err
	}
	if lease == nil {
		return nil, false, nil
	}
	return lease, true, nil
}

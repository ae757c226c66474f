package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
var ErrResetTokenInvalid = errors.New("password reset token is invalid")

// ResetStore keeps one-time password reset tokens in Redis. Only the
// SHA-256 of a token is used as key, so a dump of Redis cannot be replayed.
type ResetStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewResetStore(rdb redis.Cmdable, ttl time.Duration) *ResetStore {
	return &ResetStore{rdb: rdb, ttl: ttl, prefix: "password_reset"}
}

// Create returns a new random token bound to userID.
func (s *ResetStore) Create(ctx context.Context, userID uint64) (string, error) {
	raw, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(raw), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return raw, nil
}

// Consume atomically deletes raw and returns the user it was bound to.
func (s *ResetStore) Consume(ctx context.Context, raw string) (uint64, error) {
	v, err := s.rdb.GetDel(ctx, s.key(raw)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrResetTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	uid, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, ErrResetTokenInvalid
	}
	return uid, nil
}

func (s *ResetStore) key(raw string) string {
	return s.prefix + ":" + hashHex(raw)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

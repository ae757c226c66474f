// Package token issues and validates HS256 bearer tokens. A token is valid
// while its signature checks out, it has not expired and its hash is absent
// from the Redis blacklist. Revocation entries live only as long as the
// token would have, after which expiry alone rejects it.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bookshelf-auth/internal/apperr"
)

// Token is the client-facing credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"-"`
}

// Claims carry the subject user id; ID (jti) is random so tokens minted in
// the same second for the same user are still distinct.
type Claims struct {
	jwt.RegisteredClaims
}

// Service implements the token lifecycle.
type Service struct {
	rdb    redis.Cmdable
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewService builds a Service signing with secret and minting tokens that
// live for ttl.
func NewService(rdb redis.Cmdable, secret string, ttl time.Duration) *Service {
	return &Service{
		rdb:    rdb,
		secret: []byte(secret),
		ttl:    ttl,
		prefix: "jwt_blacklist",
		now:    time.Now,
	}
}

// TTL is the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue mints a token for userID.
func (s *Service) Issue(userID uint64) (Token, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.ttl / time.Second),
		ExpiresAt:   exp,
	}, nil
}

// parse checks signature and expiry only.
func (s *Service) parse(raw string) (*Claims, uint64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, 0, apperr.ErrTokenExpired
		}
		return nil, 0, apperr.ErrTokenInvalid
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return nil, 0, apperr.ErrTokenInvalid
	}
	return claims, uid, nil
}

// Verify returns the subject of a valid, unrevoked token.
func (s *Service) Verify(ctx context.Context, raw string) (uint64, error) {
	_, uid, err := s.parse(raw)
	if err != nil {
		return 0, err
	}
	revoked, err := s.IsRevoked(ctx, raw)
	if err != nil {
		return 0, apperr.Unexpected(err)
	}
	if revoked {
		return 0, apperr.ErrTokenRevoked
	}
	return uid, nil
}

// Refresh issues a new token for the subject of raw. The old token stays
// valid until it expires or is revoked on its own.
func (s *Service) Refresh(ctx context.Context, raw string) (Token, error) {
	uid, err := s.Verify(ctx, raw)
	if err != nil {
		return Token{}, err
	}
	return s.Issue(uid)
}

// Revoke blacklists raw for the rest of its lifetime. Revoking an already
// revoked or already expired token succeeds.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims, _, err := s.parse(raw)
	if errors.Is(err, apperr.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, s.key(raw), 1, remaining).Err(); err != nil {
		return apperr.Unexpected(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// IsRevoked reports whether raw is on the blacklist.
func (s *Service) IsRevoked(ctx context.Context, raw string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(raw)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

func (s *Service) key(raw string) string {
	return s.prefix + ":" + hashHex(raw)
}

func hashHex(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

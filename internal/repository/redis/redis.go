package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"digitalMenu/domain"

	"github.com/redis/go-redis/v9"
)

type TokenData struct {
	UserID    uint      `json:"user_id"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRepository keeps one live token per user plus a reverse lookup
// token -> user id used on every authenticated request.
type TokenRepository struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{
		client: client,
	}
}

func userKey(userID uint) string {
	return fmt.Sprintf("token:user:%d", userID)
}

func lookupKey(token string) string {
	return "token:lookup:" + token
}

// StoreSession replaces the user's previous token, which stops validating at once.
func (r *TokenRepository) StoreSession(ctx context.Context, userID uint, role domain.Role, token string, ttl time.Duration) error {
	if previous, err := r.GetTokenData(ctx, userID); err == nil {
		r.client.Del(ctx, lookupKey(previous.Token))
	}

	now := time.Now().UTC()
	jsonData, err := json.Marshal(TokenData{
		UserID:    userID,
		Role:      string(role),
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(userID), jsonData, ttl)
		pipe.Set(ctx, lookupKey(token), strconv.FormatUint(uint64(userID), 10), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}

	return nil
}

// GetTokenData retrieve token data by user ID
func (r *TokenRepository) GetTokenData(ctx context.Context, userID uint) (*TokenData, error) {
	val, err := r.client.Get(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NewError(domain.CodeNotFound, "token not found")
		}
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var tokenData TokenData
	if err := json.Unmarshal([]byte(val), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	return &tokenData, nil
}

// ValidateToken checks if a token exists and is valid
func (r *TokenRepository) ValidateToken(ctx context.Context, token string) (uint, error) {
	val, err := r.client.Get(ctx, lookupKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.NewError(domain.CodeNotFound, "token not found or expired")
		}
		return 0, fmt.Errorf("failed to validate token: %w", err)
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, domain.NewError(domain.CodeNotFound, "token lookup is corrupt")
	}
	return uint(userID), nil
}

func (r *TokenRepository) RevokeSession(ctx context.Context, userID uint) error {
	data, err := r.GetTokenData(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := r.client.Del(ctx, userKey(userID), lookupKey(data.Token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

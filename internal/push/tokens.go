// internal/push/tokens.go
package push

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feed-sync/internal/common/database"
	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// TokenStore resolves push tokens from Postgres with a Redis read-through
// cache. Either backend may be nil.
type TokenStore struct {
	db     *sql.DB
	redis  *redis.Client
	table  string
	ttl    time.Duration
	logger logger.Logger
}

func NewTokenStore(config *Config, db *sql.DB, rdb *redis.Client, log logger.Logger) *TokenStore {
	if config == nil {
		config = LoadConfig()
	}
	return &TokenStore{
		db:     db,
		redis:  rdb,
		table:  config.TokenTable,
		ttl:    config.TokenCacheTTL,
		logger: logger.Component(log, "push-tokens"),
	}
}

func cacheKey(uid string) string {
	return "push_token:" + uid
}

func (s *TokenStore) FetchToken(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", nil
	}

	if s.redis != nil {
		token, err := s.redis.Get(ctx, cacheKey(uid)).Result()
		switch {
		case err == nil:
			return token, nil
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn("token cache read failed", map[string]interface{}{
				"uid":   uid,
				"error": err.Error(),
			})
		}
	}

	if s.db == nil {
		return "", nil
	}
	if !database.ValidIdentifier(s.table) {
		return "", apperrors.NewTokenLookupFailedError(uid, fmt.Errorf("invalid table name %q", s.table))
	}

	var token string
	query := fmt.Sprintf(`SELECT push_token FROM %s WHERE uid = $1`, s.table)
	err := s.db.QueryRowContext(ctx, query, uid).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewTokenLookupFailedError(uid, err)
	}

	if s.redis != nil && token != "" {
		if err := s.redis.Set(ctx, cacheKey(uid), token, s.ttl).Err(); err != nil {
			s.logger.Warn("token cache write failed", map[string]interface{}{
				"uid":   uid,
				"error": err.Error(),
			})
		}
	}
	return token, nil
}

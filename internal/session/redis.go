// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

// RedisStore keeps sessions as JSON values with a per-key TTL matching the
// tenant's inactivity window. Concurrency control is optimistic: the stored
// Version field is compared under WATCH before every write.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, tenantID, channelUserID string) (*models.ConversationSession, error) {
	key := models.SessionKey(tenantID, channelUserID)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.NewSessionLoadFailedError(key, err)
	}

	var sess models.ConversationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, domainerrors.NewSessionLoadFailedError(key, err)
	}
	return &sess, nil
}

// Save bumps the session version and writes it back, failing with a conflict
// error when another writer got there first. The caller keeps the bumped
// version on success, so a reload is only needed after a conflict.
func (s *RedisStore) Save(ctx context.Context, sess *models.ConversationSession, ttl time.Duration) error {
	key := sess.Key()
	expected := sess.Version

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored models.ConversationSession
			if jsonErr := json.Unmarshal(data, &stored); jsonErr != nil {
				return jsonErr
			}
			if stored.Version != expected {
				return domainerrors.NewSessionConflictError(key, expected, stored.Version)
			}
		} else if expected != 0 {
			// Session expired underneath us; treat as a conflict so the
			// caller reloads instead of resurrecting stale state.
			return domainerrors.NewSessionConflictError(key, expected, 0)
		}

		sess.Version = expected + 1
		payload, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.ErrCodeSessionConflict {
			return err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return domainerrors.NewSessionConflictError(key, expected, -1)
		}
		sess.Version = expected
		return domainerrors.NewConnectionError("redis", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, tenantID, channelUserID string) error {
	key := models.SessionKey(tenantID, channelUserID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return domainerrors.NewConnectionError("redis", err)
	}
	return nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session in a hash at <prefix>session:<id> and the
// ids of a user's sessions in a set at <prefix>user_sessions:<userID>.
//
// Keys expire with the session. Multi-key updates run under WATCH and are
// retried a bounded number of times when another client wins the race.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	opts   storeOptions
}

const (
	redisMaxTxRetries = 8

	fieldUserID       = "user_id"
	fieldHash         = "credential_hash"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
	fieldRevokedAt    = "revoked_at"
	fieldSupersededBy = "superseded_by"
)

// ErrRedisContention is returned when WATCH kept failing past the retry budget.
var ErrRedisContention = errors.New("session: redis transaction contention")

// NewRedisStore wraps rdb. prefix defaults to "huddle:".
func NewRedisStore(rdb redis.UniversalClient, prefix string, opts ...StoreOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("session: nil redis client")
	}
	if prefix == "" {
		prefix = "huddle:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, opts: defaultStoreOptions(opts)}, nil
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *RedisStore) userKey(userID string) string { return s.prefix + "user_sessions:" + userID }

// watch runs fn under WATCH keys, retrying on redis.TxFailedErr.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisMaxTxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrRedisContention
}

func (s *RedisStore) Create(ctx context.Context, in NewSession) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	rec := in.record()
	key := s.sessionKey(rec.ID)
	ukey := s.userKey(rec.UserID)

	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSessionExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueInsert(ctx, pipe, rec)
			return nil
		})
		return err
	}, key, ukey)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *RedisStore) queueInsert(ctx context.Context, pipe redis.Pipeliner, rec Session) {
	key := s.sessionKey(rec.ID)
	ukey := s.userKey(rec.UserID)

	pipe.HSet(ctx, key, map[string]any{
		fieldUserID:    rec.UserID,
		fieldHash:      rec.CredentialHash,
		fieldCreatedAt: rec.CreatedAt.Format(time.RFC3339Nano),
		fieldExpiresAt: rec.ExpiresAt.Format(time.RFC3339Nano),
	})
	pipe.ExpireAt(ctx, key, rec.ExpiresAt)
	pipe.SAdd(ctx, ukey, rec.ID)
	// NX covers a fresh set, GT extends an existing one (Redis >= 7).
	pipe.ExpireNX(ctx, ukey, time.Until(rec.ExpiresAt))
	pipe.ExpireGT(ctx, ukey, time.Until(rec.ExpiresAt))
}

func (s *RedisStore) Find(ctx context.Context, sessionID string) (Session, error) {
	return s.load(ctx, s.rdb, sessionID)
}

type redisHashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) load(ctx context.Context, c redisHashGetter, sessionID string) (Session, error) {
	m, err := c.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(m) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return decodeRedisSession(sessionID, m)
}

func decodeRedisSession(id string, m map[string]string) (Session, error) {
	row := Session{
		ID:             id,
		UserID:         m[fieldUserID],
		CredentialHash: m[fieldHash],
	}
	var err error
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, m[fieldCreatedAt]); err != nil {
		return Session{}, fmt.Errorf("session: decode created_at: %w", err)
	}
	if row.ExpiresAt, err = time.Parse(time.RFC3339Nano, m[fieldExpiresAt]); err != nil {
		return Session{}, fmt.Errorf("session: decode expires_at: %w", err)
	}
	if v := m[fieldRevokedAt]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Session{}, fmt.Errorf("session: decode revoked_at: %w", err)
		}
		row.RevokedAt = &t
	}
	if v := strings.TrimSpace(m[fieldSupersededBy]); v != "" {
		row.SupersededBy = &v
	}
	return row, nil
}

func (s *RedisStore) Revoke(ctx context.Context, now time.Time, sessionID string, successorID *string) error {
	key := s.sessionKey(sessionID)
	return s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSessionNotFound
		}
		revoked, err := tx.HExists(ctx, key, fieldRevokedAt).Result()
		if err != nil {
			return err
		}
		if revoked {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldRevokedAt, now.UTC().Format(time.RFC3339Nano))
			if successorID != nil {
				pipe.HSet(ctx, key, fieldSupersededBy, *successorID)
			}
			return nil
		})
		return err
	}, key)
}

// Rotate watches the predecessor, the successor slot and the user's session
// set; any concurrent writer to those keys aborts and retries this attempt.
func (s *RedisStore) Rotate(ctx context.Context, now time.Time, oldID, presentedHash string, successor NewSession) (RotateOutcome, error) {
	if err := successor.validate(); err != nil {
		return RotateOutcome{}, err
	}
	rec := successor.record()
	oldKey := s.sessionKey(oldID)
	newKey := s.sessionKey(rec.ID)
	ukey := s.userKey(rec.UserID)
	stamp := now.UTC().Format(time.RFC3339Nano)

	var out RotateOutcome
	err := s.watch(ctx, func(tx *redis.Tx) error {
		out = RotateOutcome{}

		prev, err := s.load(ctx, tx, oldID)
		if err != nil {
			return err
		}
		out.Predecessor = prev

		reuse, verr := checkRotatable(prev, now, presentedHash, successor)
		if verr != nil {
			out.ReuseDetected = reuse
			if !reuse || !s.opts.revokeOnReuse {
				return verr
			}
			ids, err := tx.SMembers(ctx, s.userKey(prev.UserID)).Result()
			if err != nil {
				return err
			}
			// HSETNX on an expired id would recreate a stray hash without a TTL.
			live := make([]string, 0, len(ids))
			for _, id := range ids {
				n, err := tx.Exists(ctx, s.sessionKey(id)).Result()
				if err != nil {
					return err
				}
				if n > 0 {
					live = append(live, s.sessionKey(id))
				}
			}
			cmds, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, key := range live {
					pipe.HSetNX(ctx, key, fieldRevokedAt, stamp)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, c := range cmds {
				if bc, ok := c.(*redis.BoolCmd); ok && bc.Val() {
					out.RevokedCount++
				}
			}
			return verr
		}

		n, err := tx.Exists(ctx, newKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSessionExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueInsert(ctx, pipe, rec)
			pipe.HSet(ctx, oldKey, fieldRevokedAt, stamp, fieldSupersededBy, rec.ID)
			return nil
		})
		if err != nil {
			return err
		}
		out.SuccessorID = rec.ID
		return nil
	}, oldKey, newKey, ukey)

	return out, err
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	ukey := s.userKey(userID)

	var deleted int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, ukey).Result()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, s.sessionKey(id))
		}

		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				del = pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, ukey)
			return nil
		})
		if err != nil {
			return err
		}
		if del != nil {
			deleted = del.Val()
		}
		return nil
	}, ukey)
	return deleted, err
}

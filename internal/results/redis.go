package results

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
)

// RedisStore keeps unconsumed results in Redis so take-once semantics hold
// across API replicas. SET NX guards against duplicate writes, GETDEL makes
// the read-and-remove a single atomic command.
type RedisStore struct {
	rdb *r.Client
	ttl time.Duration
}

// NewRedisStore wraps an existing client. ttl bounds how long an unclaimed
// result may linger; zero means no expiry.
func NewRedisStore(rdb *r.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Key is the Redis key under which a job's result lives. Exported so the
// janitor binary can evict results without going through a Store.
func Key(jobID string) string { return "result:" + jobID }

func (s *RedisStore) Put(ctx context.Context, jobID string, payload json.RawMessage) error {
	ok, err := s.rdb.SetNX(ctx, Key(jobID), []byte(payload), s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "setnx result")
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) TakeOnce(ctx context.Context, jobID string) (json.RawMessage, error) {
	payload, err := s.rdb.GetDel(ctx, Key(jobID)).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getdel result")
	}
	return json.RawMessage(payload), nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	if err := s.rdb.Del(ctx, Key(jobID)).Err(); err != nil {
		return errors.Wrap(err, "del result")
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the durable, shared queue backend. Pending jobs live in a
// Redis list (RPUSH/BLPOP gives FIFO with single-delivery pops); result slots
// are plain keys written with SET EX so they expire on their own.
type RedisStore struct {
	client *redis.Client
	keys   Keys
}

// NewRedisStore connects and pings the backend. A failed ping is returned to
// the caller so it can fall back to another Store implementation.
func NewRedisStore(ctx context.Context, opts *redis.Options, namespace string) (*RedisStore, error) {
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrBackendUnavailable, opts.Addr, err)
	}

	return &RedisStore{
		client: client,
		keys:   Keys{Namespace: namespace},
	}, nil
}

func (s *RedisStore) Push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return &SerializationError{Op: "encode job", Err: err}
	}

	if err := s.client.RPush(ctx, s.keys.Tasks(), data).Err(); err != nil {
		return fmt.Errorf("%w: rpush: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	vals, err := s.client.BLPop(ctx, timeout, s.keys.Tasks()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // queue stayed empty for the whole timeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: blpop: %v", ErrBackendUnavailable, err)
	}

	// BLPOP returns [key, value].
	if len(vals) != 2 {
		return nil, fmt.Errorf("unexpected blpop reply of length %d", len(vals))
	}

	var job Job
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, &SerializationError{Op: "decode job", Err: err}
	}
	return &job, nil
}

func (s *RedisStore) PutResult(ctx context.Context, jobID string, result *Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return &SerializationError{Op: "encode result", Err: err}
	}

	if err := s.client.Set(ctx, s.keys.Result(jobID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set result: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) GetResult(ctx context.Context, jobID string) (*Result, error) {
	data, err := s.client.Get(ctx, s.keys.Result(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // never written, or already expired
		}
		return nil, fmt.Errorf("%w: get result: %v", ErrBackendUnavailable, err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &SerializationError{Op: "decode result", Err: err}
	}
	return &result, nil
}

func (s *RedisStore) Depth(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.keys.Tasks()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"soulchat-backend/internal/dialogue"
)

// RedisStore keeps history as a Redis list (RPUSH + LTRIM), state as a JSON
// string and credentials as a hash, all keyed by session id.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses the URL and verifies connectivity before returning.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func historyKey(sessionID string) string { return "history:" + sessionID }
func stateKey(sessionID string) string   { return "state:" + sessionID }
func credsKey(sessionID string) string   { return "credentials:" + sessionID }

func (r *RedisStore) AppendMessage(ctx context.Context, sessionID string, msg dialogue.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, historyKey(sessionID), b).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) History(ctx context.Context, sessionID string) ([]dialogue.Message, error) {
	items, err := r.rdb.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]dialogue.Message, 0, len(items))
	for _, item := range items {
		var msg dialogue.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *RedisStore) TrimHistory(ctx context.Context, sessionID string, maxMessages int) error {
	if maxMessages <= 0 {
		return nil
	}
	if err := r.rdb.LTrim(ctx, historyKey(sessionID), int64(-maxMessages), -1).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) GetState(ctx context.Context, sessionID string) (*dialogue.SessionState, error) {
	raw, err := r.rdb.Get(ctx, stateKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	var state dialogue.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt record behaves like an absent one.
		return nil, nil
	}
	return &state, nil
}

func (r *RedisStore) PutState(ctx context.Context, sessionID string, state *dialogue.SessionState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, stateKey(sessionID), b, 0).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) GetCredential(ctx context.Context, sessionID, provider string) (string, error) {
	key, err := r.rdb.HGet(ctx, credsKey(sessionID), provider).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	return key, nil
}

func (r *RedisStore) PutCredential(ctx context.Context, sessionID, provider, apiKey string) error {
	if err := r.rdb.HSet(ctx, credsKey(sessionID), provider, apiKey).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, historyKey(sessionID), stateKey(sessionID), credsKey(sessionID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", dialogue.ErrStoreUnavailable, err)
}

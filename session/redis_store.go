package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/modelcouncil/council/council"
)

// RedisStore is a distributed alternative to Store for deployments
// running more than one orchestration process: ConversationContext is
// serialized to JSON and held under a TTL key so idle sessions expire
// without an explicit sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore builds a RedisStore. ttl <= 0 falls back to 24h, a
// generous idle window for a conversational session.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "council:session:"}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Get returns the current ConversationContext for sessionID, or a
// zero-value context if the key is absent or expired.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (council.ConversationContext, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return council.ConversationContext{}, nil
	}
	if err != nil {
		return council.ConversationContext{}, fmt.Errorf("session: redis get: %w", err)
	}

	var cc council.ConversationContext
	if err := json.Unmarshal(raw, &cc); err != nil {
		return council.ConversationContext{}, fmt.Errorf("session: decode: %w", err)
	}
	return cc, nil
}

// Append loads, mutates, and rewrites the stored context for sessionID,
// refreshing its TTL.
func (r *RedisStore) Append(ctx context.Context, sessionID string, msg council.ConversationMessage, tokens int) error {
	cc, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	cc.Messages = append(cc.Messages, msg)
	cc.TotalTokens += tokens
	return r.save(ctx, sessionID, cc)
}

// Summarize replaces sessionID's message history with a single summary
// message, refreshing its TTL.
func (r *RedisStore) Summarize(ctx context.Context, sessionID string, summary string) error {
	cc, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	cc.Messages = []council.ConversationMessage{{
		Role:      "system",
		Content:   summary,
		Timestamp: time.Now(),
	}}
	cc.Summarized = true
	return r.save(ctx, sessionID, cc)
}

func (r *RedisStore) save(ctx context.Context, sessionID string, cc council.ConversationContext) error {
	raw, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Remove deletes sessionID's stored context.
func (r *RedisStore) Remove(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

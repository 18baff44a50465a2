package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/resilience"
)

// MemoryProvider is pluggable conversation persistence (spec.md §4.15):
// save/load/clear keyed by session id. The Agent loads on run start (if
// configured) and saves after each run.
type MemoryProvider interface {
	Save(ctx context.Context, sessionID string, messages []providers.ChatMessage) error
	Load(ctx context.Context, sessionID string) ([]providers.ChatMessage, error)
	Clear(ctx context.Context, sessionID string) error
}

// InMemoryMemoryProvider is the reference implementation: a plain map
// guarded by a mutex, returning defensive copies on both read and write so
// neither side can mutate the other's backing array (spec.md §4.15),
// grounded on the teacher's RingMemory but keyed by session rather than a
// fixed-capacity ring, since sessions here hold whole conversations rather
// than a rolling window of steps.
type InMemoryMemoryProvider struct {
	mu       sync.Mutex
	sessions map[string][]providers.ChatMessage
}

// NewInMemoryMemoryProvider builds an empty provider.
func NewInMemoryMemoryProvider() *InMemoryMemoryProvider {
	return &InMemoryMemoryProvider{sessions: make(map[string][]providers.ChatMessage)}
}

func (p *InMemoryMemoryProvider) Save(_ context.Context, sessionID string, messages []providers.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID] = copyMessages(messages)
	return nil
}

func (p *InMemoryMemoryProvider) Load(_ context.Context, sessionID string) ([]providers.ChatMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored, ok := p.sessions[sessionID]
	if !ok {
		return []providers.ChatMessage{}, nil
	}
	return copyMessages(stored), nil
}

func (p *InMemoryMemoryProvider) Clear(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sessionID)
	return nil
}

func copyMessages(in []providers.ChatMessage) []providers.ChatMessage {
	out := make([]providers.ChatMessage, len(in))
	copy(out, in)
	return out
}

// RedisMemoryProvider persists sessions as JSON-encoded message arrays in
// Redis, for deployments that need agent state to survive process restarts.
// No direct teacher equivalent (the teacher's memory is purely in-process);
// grounded on the rest of the pack's use of github.com/redis/go-redis/v9 for
// durable key/value state.
type RedisMemoryProvider struct {
	client *redis.Client
	prefix string
}

// NewRedisMemoryProvider wraps an existing client; keys are stored under
// prefix+sessionID.
func NewRedisMemoryProvider(client *redis.Client, prefix string) *RedisMemoryProvider {
	if prefix == "" {
		prefix = "ragcore:agent:session:"
	}
	return &RedisMemoryProvider{client: client, prefix: prefix}
}

func (p *RedisMemoryProvider) key(sessionID string) string {
	return p.prefix + sessionID
}

func (p *RedisMemoryProvider) Save(ctx context.Context, sessionID string, messages []providers.ChatMessage) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return resilience.Wrap(resilience.ErrCodeValidation, err)
	}
	if err := p.client.Set(ctx, p.key(sessionID), data, 0).Err(); err != nil {
		return resilience.Wrap(resilience.ErrCodeCacheError, err)
	}
	return nil
}

func (p *RedisMemoryProvider) Load(ctx context.Context, sessionID string) ([]providers.ChatMessage, error) {
	data, err := p.client.Get(ctx, p.key(sessionID)).Bytes()
	if err == redis.Nil {
		return []providers.ChatMessage{}, nil
	}
	if err != nil {
		return nil, resilience.Wrap(resilience.ErrCodeCacheError, err)
	}
	var messages []providers.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, resilience.Wrap(resilience.ErrCodeValidation, err)
	}
	return messages, nil
}

func (p *RedisMemoryProvider) Clear(ctx context.Context, sessionID string) error {
	if err := p.client.Del(ctx, p.key(sessionID)).Err(); err != nil {
		return resilience.Wrap(resilience.ErrCodeCacheError, err)
	}
	return nil
}

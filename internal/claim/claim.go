// Package claim garante que cada intervalo de um alerta seja avaliado no
// máximo uma vez, mesmo com ticks sobrepostos ou um segundo processo.
package claim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "botalertas:claim:"

// Claimer reserva uma chave por um período
type Claimer interface {
	// Claim retorna true se a chave foi reservada agora, false se já estava reservada
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key identifica um intervalo de um alerta: o mesmo lastCheckedAt é o mesmo intervalo
func Key(watchID int64, lastCheckedAt int64) string {
	return fmt.Sprintf("%d:%d", watchID, lastCheckedAt)
}

// RedisClaimer usa SETNX do Redis
type RedisClaimer struct {
	rdb *redis.Client
}

// NewRedisClaimer cria uma reserva baseada em Redis
func NewRedisClaimer(rdb *redis.Client) *RedisClaimer {
	return &RedisClaimer{rdb: rdb}
}

// Claim reserva a chave com SETNX e expiração ttl
func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim setnx: %w", err)
	}
	return ok, nil
}

// Release libera a chave antes do prazo
func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("claim del: %w", err)
	}
	return nil
}

// MemoryClaimer é a versão em processo, usada quando não há Redis configurado
type MemoryClaimer struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryClaimer cria uma reserva local ao processo
func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Claim reserva a chave até now+ttl, descartando reservas vencidas
func (c *MemoryClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, k)
		}
	}
	if _, held := c.entries[key]; held {
		return false, nil
	}
	c.entries[key] = now.Add(ttl)
	return true, nil
}

// Release libera a chave
func (c *MemoryClaimer) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

const shardCount = 32

type bucket struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryStore mantém os buckets do processo num mapa particionado em shards
// Cada instância aplica sua cota de forma independente (sem sincronização entre processos)
type MemoryStore struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewMemoryStore cria o store em memória; now==nil usa o relógio do sistema
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	s := &MemoryStore{now: now}
	for i := range s.shards {
		s.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

// Take cria o bucket na primeira chamada (cheio) e consome um token
// Reposição contínua: Max tokens a cada Window
func (s *MemoryStore) Take(_ context.Context, key string, q Quota) (bool, error) {
	now := s.now()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if !ok {
		every := q.Window / time.Duration(q.Max)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), q.Max), window: q.Window}
		sh.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1), nil
}

// Sweep remove buckets sem uso há pelo menos uma janela (já estariam cheios de novo)
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, b := range sh.buckets {
			if now.Sub(b.lastSeen) >= b.window {
				delete(sh.buckets, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len retorna o número de buckets ativos
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}

package task

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ZKAttest-Chain/internal/prover"
)

const defaultKeyCacheSize = 64

// keyCache 保证每个程序只执行一次 Setup，失败的结果不缓存。
// 条目数量受 LRU 上限约束，被淘汰的程序下次使用时重新 Setup。
type keyCache struct {
	prover prover.Prover

	mu      sync.Mutex
	entries *lru.Cache[string, *keyEntry]
}

type keyEntry struct {
	ready chan struct{}
	keys  prover.Keys
	err   error
}

func newKeyCache(p prover.Prover, size int) *keyCache {
	if size <= 0 {
		size = defaultKeyCacheSize
	}
	// lru.New 只在 size <= 0 时返回错误。
	entries, _ := lru.New[string, *keyEntry](size)
	return &keyCache{prover: p, entries: entries}
}

func (c *keyCache) get(ctx context.Context, program prover.Program) (prover.Keys, error) {
	c.mu.Lock()
	entry, ok := c.entries.Get(program.ID)
	if !ok {
		entry = &keyEntry{ready: make(chan struct{})}
		c.entries.Add(program.ID, entry)
		c.mu.Unlock()

		entry.keys, entry.err = c.prover.Setup(ctx, program)
		if entry.err != nil {
			c.mu.Lock()
			if current, found := c.entries.Peek(program.ID); found && current == entry {
				c.entries.Remove(program.ID)
			}
			c.mu.Unlock()
		}
		close(entry.ready)
		return entry.keys, entry.err
	}
	c.mu.Unlock()

	select {
	case <-entry.ready:
		return entry.keys, entry.err
	case <-ctx.Done():
		return prover.Keys{}, ctx.Err()
	}
}

package snapshot

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const internerShards = 16

// Interner deduplicates type and field name strings so that the millions
// of objects in a dump share one backing string per distinct name. It is
// grow-only: entries are never removed before the snapshot is dropped.
//
// Intern(a) == Intern(b) holds exactly when a and b are byte-equal, and
// the returned string is the same allocation for every equal input, so
// callers may compare interned strings cheaply.
type Interner struct {
	shards [internerShards]internShard
}

type internShard struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewInterner() *Interner {
	in := &Interner{}
	for i := range in.shards {
		in.shards[i].m = make(map[string]string)
	}
	return in
}

// Intern returns the canonical copy of s. Empty strings are returned
// unchanged without touching the table.
func (in *Interner) Intern(s string) string {
	if s == "" {
		return s
	}

	shard := &in.shards[xxhash.Sum64String(s)%internerShards]

	shard.mu.RLock()
	canonical, ok := shard.m[s]
	shard.mu.RUnlock()
	if ok {
		return canonical
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if canonical, ok := shard.m[s]; ok {
		return canonical
	}
	shard.m[s] = s
	return s
}

// Len returns the number of distinct strings interned so far.
func (in *Interner) Len() int {
	total := 0
	for i := range in.shards {
		in.shards[i].mu.RLock()
		total += len(in.shards[i].m)
		in.shards[i].mu.RUnlock()
	}
	return total
}

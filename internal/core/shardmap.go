package core

import (
	"hash/maphash"
	"sync"
)

const defaultShards = 32

// ShardMap is a map split into independently locked shards. Operations on
// keys in different shards never contend.
type ShardMap[K comparable, V any] struct {
	seed   maphash.Seed
	shards []shard[K, V]
}

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewShardMap[K comparable, V any]() *ShardMap[K, V] {
	return NewShardMapN[K, V](defaultShards)
}

func NewShardMapN[K comparable, V any](n int) *ShardMap[K, V] {
	if n < 1 {
		n = 1
	}
	sm := &ShardMap[K, V]{seed: maphash.MakeSeed(), shards: make([]shard[K, V], n)}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

func (sm *ShardMap[K, V]) shardFor(k K) *shard[K, V] {
	h := maphash.Comparable(sm.seed, k)
	return &sm.shards[h%uint64(len(sm.shards))]
}

func (sm *ShardMap[K, V]) Load(k K) (V, bool) {
	s := sm.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[k]
	return v, ok
}

func (sm *ShardMap[K, V]) Store(k K, v V) {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = v
}

// LoadOrStore returns the existing value for k if present, otherwise stores v.
func (sm *ShardMap[K, V]) LoadOrStore(k K, v V) (actual V, loaded bool) {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[k]; ok {
		return cur, true
	}
	s.m[k] = v
	return v, false
}

func (sm *ShardMap[K, V]) Delete(k K) (V, bool) {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[k]
	delete(s.m, k)
	return v, ok
}

// DeleteIf removes k only when pred holds for its current value. pred runs
// under the shard lock.
func (sm *ShardMap[K, V]) DeleteIf(k K, pred func(V) bool) bool {
	s := sm.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[k]
	if !ok || !pred(v) {
		return false
	}
	delete(s.m, k)
	return true
}

// Range visits a snapshot of every shard; fn may call back into the map.
func (sm *ShardMap[K, V]) Range(fn func(K, V) bool) {
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		keys := make([]K, 0, len(s.m))
		vals := make([]V, 0, len(s.m))
		for k, v := range s.m {
			keys = append(keys, k)
			vals = append(vals, v)
		}
		s.mu.RUnlock()
		for j := range keys {
			if !fn(keys[j], vals[j]) {
				return
			}
		}
	}
}

func (sm *ShardMap[K, V]) Len() int {
	n := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

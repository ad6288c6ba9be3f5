// Package perf maintains running performance statistics per
// (model, task type, complexity) triple.
//
// Memory is O(distinct triples), not O(tasks processed): every observation
// folds into running weighted means instead of being stored.
package perf

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/task"
)

// Key identifies one statistics bucket.
type Key struct {
	Model    string
	TaskType task.Type
	Class    complexity.Class
}

// Record holds the running statistics for one key. Updates are weighted
// merges, never overwrites.
type Record struct {
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	Satisfaction float64   `json:"satisfaction"` // normalized to [0,1]
	Observations int64     `json:"observations"`
	Rated        int64     `json:"rated"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Observation is one reported outcome.
type Observation struct {
	Success bool
	Latency time.Duration
	// Rating is an optional user-satisfaction rating 1-5; zero means unrated.
	Rating int
}

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	records map[Key]*Record
}

// Store is the concurrency-safe performance store. Merges for the same key
// are serialized by the owning shard lock, so concurrent increments never
// lose updates.
type Store struct {
	shards [shardCount]shard
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i].records = make(map[Key]*Record)
	}
	return s
}

func (s *Store) shardFor(key Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.Model))
	h.Write([]byte(key.TaskType))
	h.Write([]byte(key.Class))
	return &s.shards[h.Sum32()%shardCount]
}

// Record folds one observation into the key's running statistics.
func (s *Store) Record(key Key, obs Observation) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		rec = &Record{}
		sh.records[key] = rec
	}

	rec.Observations++
	n := float64(rec.Observations)

	sample := 0.0
	if obs.Success {
		sample = 1.0
	}
	rec.SuccessRate = (rec.SuccessRate*(n-1) + sample) / n
	rec.AvgLatencyMs = (rec.AvgLatencyMs*(n-1) + float64(obs.Latency.Milliseconds())) / n

	if obs.Rating >= 1 && obs.Rating <= 5 {
		rec.Rated++
		rn := float64(rec.Rated)
		rec.Satisfaction = (rec.Satisfaction*(rn-1) + float64(obs.Rating)/5.0) / rn
	}

	rec.LastUpdated = s.now()
}

// Lookup returns a copy of the record for key.
func (s *Store) Lookup(key Key) (Record, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot copies every record, for persistence or inspection.
func (s *Store) Snapshot() map[Key]Record {
	out := make(map[Key]Record)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, rec := range sh.records {
			out[k] = *rec
		}
		sh.mu.Unlock()
	}
	return out
}

// Hydrate seeds the store from persisted records. Existing in-memory
// records for the same key are replaced; intended for startup.
func (s *Store) Hydrate(records map[Key]Record) {
	for k, rec := range records {
		sh := s.shardFor(k)
		copied := rec
		sh.mu.Lock()
		sh.records[k] = &copied
		sh.mu.Unlock()
	}
}

// Len reports the number of distinct triples tracked.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}
	return total
}

package perf

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/task"
)

func testKey() Key {
	return Key{Model: "claude-sonnet", TaskType: task.TypeAnalyze, Class: complexity.ClassStandard}
}

func TestRecordRunningSuccessRate(t *testing.T) {
	s := NewStore()
	key := testKey()

	outcomes := []bool{true, true, false, true, false, false, true, true, true, false}
	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
		s.Record(key, Observation{Success: ok, Latency: 100 * time.Millisecond})
	}

	rec, ok := s.Lookup(key)
	if !ok {
		t.Fatalf("expected record")
	}
	want := float64(successes) / float64(len(outcomes))
	if math.Abs(rec.SuccessRate-want) > 1e-9 {
		t.Fatalf("success rate %f, want %f", rec.SuccessRate, want)
	}
	if rec.Observations != int64(len(outcomes)) {
		t.Fatalf("observations %d, want %d", rec.Observations, len(outcomes))
	}
	if math.Abs(rec.AvgLatencyMs-100) > 1e-9 {
		t.Fatalf("avg latency %f, want 100", rec.AvgLatencyMs)
	}
}

func TestRecordConcurrentNoLostUpdates(t *testing.T) {
	s := NewStore()
	key := testKey()

	const workers = 8
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// Half the workers report success, half failure.
				s.Record(key, Observation{Success: w%2 == 0, Latency: 50 * time.Millisecond})
			}
		}(w)
	}
	wg.Wait()

	rec, ok := s.Lookup(key)
	if !ok {
		t.Fatalf("expected record")
	}
	if rec.Observations != workers*perWorker {
		t.Fatalf("lost updates: observations %d, want %d", rec.Observations, workers*perWorker)
	}
	if math.Abs(rec.SuccessRate-0.5) > 1e-6 {
		t.Fatalf("success rate %f, want 0.5", rec.SuccessRate)
	}
}

func TestSatisfactionOnlyCountsRated(t *testing.T) {
	s := NewStore()
	key := testKey()

	s.Record(key, Observation{Success: true, Rating: 5})
	s.Record(key, Observation{Success: true}) // unrated
	s.Record(key, Observation{Success: true, Rating: 3})

	rec, _ := s.Lookup(key)
	if rec.Rated != 2 {
		t.Fatalf("rated %d, want 2", rec.Rated)
	}
	want := (1.0 + 0.6) / 2
	if math.Abs(rec.Satisfaction-want) > 1e-9 {
		t.Fatalf("satisfaction %f, want %f", rec.Satisfaction, want)
	}
}

func TestMemoryBoundedByTriples(t *testing.T) {
	s := NewStore()
	key := testKey()
	for i := 0; i < 1000; i++ {
		s.Record(key, Observation{Success: true, Latency: time.Millisecond})
	}
	if s.Len() != 1 {
		t.Fatalf("expected a single tracked triple, got %d", s.Len())
	}
}

func TestSnapshotHydrateRoundTrip(t *testing.T) {
	s := NewStore()
	keys := []Key{
		{Model: "a", TaskType: task.TypeAnalyze, Class: complexity.ClassSimple},
		{Model: "b", TaskType: task.TypeDraftReply, Class: complexity.ClassComplex},
	}
	for _, k := range keys {
		s.Record(k, Observation{Success: true, Latency: 20 * time.Millisecond, Rating: 4})
	}

	snap := s.Snapshot()
	fresh := NewStore()
	fresh.Hydrate(snap)

	for _, k := range keys {
		orig, _ := s.Lookup(k)
		got, ok := fresh.Lookup(k)
		if !ok {
			t.Fatalf("missing key %+v after hydrate", k)
		}
		if got != orig {
			t.Fatalf("record mismatch for %+v: %+v vs %+v", k, got, orig)
		}
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/perf"
	"github.com/zen-systems/taskgate/pkg/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "taskgate.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPerformanceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key := perf.Key{Model: "claude-sonnet", TaskType: task.TypeDraftReply, Class: complexity.ClassComplex}
	records := map[perf.Key]perf.Record{
		key: {
			SuccessRate:  0.92,
			AvgLatencyMs: 1850,
			Satisfaction: 0.88,
			Observations: 41,
			Rated:        12,
			LastUpdated:  time.Now().UTC().Truncate(time.Second),
		},
	}

	if err := s.SavePerformance(ctx, records); err != nil {
		t.Fatalf("SavePerformance failed: %v", err)
	}

	loaded, err := s.LoadPerformance(ctx)
	if err != nil {
		t.Fatalf("LoadPerformance failed: %v", err)
	}
	got, ok := loaded[key]
	if !ok {
		t.Fatalf("expected record for %v, got %v", key, loaded)
	}
	if got.SuccessRate != 0.92 || got.Observations != 41 || got.Rated != 12 {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestPerformanceSaveIsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key := perf.Key{Model: "gpt-instant", TaskType: task.TypeClassify, Class: complexity.ClassSimple}
	if err := s.SavePerformance(ctx, map[perf.Key]perf.Record{key: {SuccessRate: 0.5, Observations: 1, LastUpdated: time.Now()}}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.SavePerformance(ctx, map[perf.Key]perf.Record{key: {SuccessRate: 0.9, Observations: 10, LastUpdated: time.Now()}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := s.LoadPerformance(ctx)
	if err != nil {
		t.Fatalf("LoadPerformance failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(loaded))
	}
	if got := loaded[key]; got.SuccessRate != 0.9 || got.Observations != 10 {
		t.Fatalf("expected updated record, got %+v", got)
	}
}

func TestRecentInteractionsOrderAndScope(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, subject := range []string{"first", "second", "third"} {
		err := s.RecordInteraction(ctx, Interaction{
			ID:        subject,
			TenantID:  "acme",
			Contact:   "pat@customer.example",
			Subject:   subject,
			Summary:   "summary of " + subject,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordInteraction failed: %v", err)
		}
	}
	// Different tenant, must not leak across.
	if err := s.RecordInteraction(ctx, Interaction{ID: "other", TenantID: "globex", Contact: "pat@customer.example", Subject: "other"}); err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}

	got, err := s.RecentInteractions(ctx, "acme", "pat@customer.example", 2)
	if err != nil {
		t.Fatalf("RecentInteractions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(got))
	}
	if got[0].Subject != "third" || got[1].Subject != "second" {
		t.Fatalf("expected newest first, got %q then %q", got[0].Subject, got[1].Subject)
	}
}

func TestEntityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := Entity{
		ID:         "ord-1042",
		TenantID:   "acme",
		Name:       "order 1042",
		Kind:       "order",
		Attributes: map[string]string{"status": "stuck", "amount": "120.00"},
	}
	if err := s.SaveEntity(ctx, e); err != nil {
		t.Fatalf("SaveEntity failed: %v", err)
	}

	got, err := s.EntitiesFor(ctx, "acme", "1042", 5)
	if err != nil {
		t.Fatalf("EntitiesFor failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(got))
	}
	if got[0].Attributes["status"] != "stuck" {
		t.Fatalf("attributes lost: %+v", got[0].Attributes)
	}
}

func TestTenantConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tc := config.TenantConfig{
		AIEnabled:          true,
		GlobalInstructions: []string{"Answer in the customer's language."},
		Rules: []config.RuleConfig{
			{
				Name:   "vip-escalation",
				Family: "response",
				Active: true,
				Effect: "escalate",
				Condition: config.ConditionConfig{
					Kind: "equals", Field: "domain", Value: "bigcorp.example",
				},
			},
		},
	}
	if err := s.SaveTenantConfig(ctx, "acme", tc); err != nil {
		t.Fatalf("SaveTenantConfig failed: %v", err)
	}

	loaded, err := s.LoadTenantConfigs(ctx)
	if err != nil {
		t.Fatalf("LoadTenantConfigs failed: %v", err)
	}
	got, ok := loaded["acme"]
	if !ok {
		t.Fatal("expected tenant acme")
	}
	if !got.AIEnabled || len(got.Rules) != 1 || got.Rules[0].Name != "vip-escalation" {
		t.Fatalf("config mismatch: %+v", got)
	}
	if got.Rules[0].Condition.Value != "bigcorp.example" {
		t.Fatalf("condition lost: %+v", got.Rules[0].Condition)
	}
}

func TestPatternsForOrdersByWeight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []Pattern{
		{ID: "p1", TenantID: "acme", TaskType: task.TypeDraftReply, Description: "light", Weight: 0.2},
		{ID: "p2", TenantID: "acme", TaskType: task.TypeDraftReply, Description: "heavy", Weight: 0.9},
		{ID: "p3", TenantID: "acme", TaskType: task.TypeSummarize, Description: "wrong type", Weight: 1.0},
	} {
		if err := s.SavePattern(ctx, p); err != nil {
			t.Fatalf("SavePattern failed: %v", err)
		}
	}

	got, err := s.PatternsFor(ctx, "acme", task.TypeDraftReply, 5)
	if err != nil {
		t.Fatalf("PatternsFor failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(got))
	}
	if got[0].Description != "heavy" {
		t.Fatalf("expected heaviest pattern first, got %q", got[0].Description)
	}
}

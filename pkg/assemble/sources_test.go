package assemble

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/taskgate/pkg/prefs"
	"github.com/zen-systems/taskgate/pkg/store"
	"github.com/zen-systems/taskgate/pkg/task"
)

type fakeInteractions struct {
	items []store.Interaction
	err   error
}

func (f *fakeInteractions) RecentInteractions(_ context.Context, tenantID, contact string, limit int) ([]store.Interaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

type fakeEntities struct {
	byTerm map[string][]store.Entity
}

func (f *fakeEntities) EntitiesFor(_ context.Context, tenantID, term string, limit int) ([]store.Entity, error) {
	return f.byTerm[term], nil
}

type fakePatterns struct {
	items []store.Pattern
}

func (f *fakePatterns) PatternsFor(_ context.Context, tenantID string, taskType task.Type, limit int) ([]store.Pattern, error) {
	return f.items, nil
}

type fakeTenants map[string]*prefs.RuleSet

func (f fakeTenants) RuleSet(tenantID string) (*prefs.RuleSet, bool) {
	rs, ok := f[tenantID]
	return rs, ok
}

func TestTenantSettingsSource(t *testing.T) {
	tenants := fakeTenants{
		"acme": {
			AIEnabled:          true,
			GlobalInstructions: []string{"Sign off as the Acme support team.", "Never promise refunds."},
		},
	}
	src := &TenantSettingsSource{Tenants: tenants}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag == nil {
		t.Fatal("expected a fragment")
	}
	if !strings.Contains(frag.Content, "Never promise refunds.") {
		t.Fatalf("instructions missing from content: %q", frag.Content)
	}

	if _, err := src.Fetch(context.Background(), &task.Request{TenantID: "unknown"}); err == nil {
		t.Fatal("expected error for unknown tenant")
	}
}

func TestInteractionHistorySourceSkipsWithoutSender(t *testing.T) {
	src := &InteractionHistorySource{Store: &fakeInteractions{items: []store.Interaction{{Subject: "hi"}}}}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag != nil {
		t.Fatalf("expected no fragment without a sender, got %+v", frag)
	}
}

func TestInteractionHistorySourceFormatsHistory(t *testing.T) {
	src := &InteractionHistorySource{
		Store: &fakeInteractions{items: []store.Interaction{
			{Subject: "order delay", Summary: "apologized, offered credit", CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		}},
	}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme", Sender: "pat@customer.example"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag == nil {
		t.Fatal("expected a fragment")
	}
	if !strings.Contains(frag.Content, "2026-08-01") || !strings.Contains(frag.Content, "order delay") {
		t.Fatalf("unexpected content: %q", frag.Content)
	}
}

func TestEntitySourceDeduplicates(t *testing.T) {
	entity := store.Entity{ID: "ord-1042", Name: "order 1042", Kind: "order"}
	src := &EntitySource{Store: &fakeEntities{byTerm: map[string][]store.Entity{
		"order": {entity},
		"1042":  {entity},
	}}}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme", Subject: "order 1042 stuck"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag == nil {
		t.Fatal("expected a fragment")
	}
	if n := strings.Count(frag.Content, "order 1042"); n != 1 {
		t.Fatalf("expected entity listed once, found %d times in %q", n, frag.Content)
	}
}

func TestEntitySourceAbsentWhenNothingMatches(t *testing.T) {
	src := &EntitySource{Store: &fakeEntities{byTerm: map[string][]store.Entity{}}}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme", Subject: "question about billing"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag != nil {
		t.Fatalf("expected explicit absence, got %+v", frag)
	}
}

func TestPatternSource(t *testing.T) {
	src := &PatternSource{Store: &fakePatterns{items: []store.Pattern{
		{Description: "escalate refund requests over $500"},
	}}}

	frag, err := src.Fetch(context.Background(), &task.Request{TenantID: "acme", Type: task.TypeDraftReply})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if frag == nil {
		t.Fatal("expected a fragment")
	}
	if !strings.Contains(frag.Content, "escalate refund requests") {
		t.Fatalf("unexpected content: %q", frag.Content)
	}
	if frag.Priority != priorityPatterns {
		t.Fatalf("expected priority %d, got %d", priorityPatterns, frag.Priority)
	}
}

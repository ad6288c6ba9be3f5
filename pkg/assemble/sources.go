package assemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/taskgate/pkg/prefs"
	"github.com/zen-systems/taskgate/pkg/store"
	"github.com/zen-systems/taskgate/pkg/task"
)

// Source priorities. Lower merges first and survives trimming longest.
const (
	priorityTenantSettings = 1
	priorityEntities       = 2
	priorityInteractions   = 3
	priorityPatterns       = 4
)

// TenantSettingsSource contributes the tenant's standing instructions.
type TenantSettingsSource struct {
	Tenants prefs.TenantProvider
}

func (s *TenantSettingsSource) Name() string  { return "tenant-settings" }
func (s *TenantSettingsSource) Priority() int { return priorityTenantSettings }

func (s *TenantSettingsSource) Fetch(_ context.Context, req *task.Request) (*Fragment, error) {
	rs, ok := s.Tenants.RuleSet(req.TenantID)
	if !ok || rs == nil {
		return nil, fmt.Errorf("unknown tenant %q", req.TenantID)
	}
	if len(rs.GlobalInstructions) == 0 {
		return nil, nil
	}
	return &Fragment{
		Name:     "tenant instructions",
		Content:  strings.Join(rs.GlobalInstructions, "\n"),
		Priority: s.Priority(),
		Source:   s.Name(),
	}, nil
}

type interactionLister interface {
	RecentInteractions(ctx context.Context, tenantID, contact string, limit int) ([]store.Interaction, error)
}

// InteractionHistorySource contributes recent exchanges with the sender.
type InteractionHistorySource struct {
	Store interactionLister
	Limit int
}

func (s *InteractionHistorySource) Name() string  { return "interaction-history" }
func (s *InteractionHistorySource) Priority() int { return priorityInteractions }

func (s *InteractionHistorySource) Fetch(ctx context.Context, req *task.Request) (*Fragment, error) {
	if req.Sender == "" {
		return nil, nil
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 5
	}
	interactions, err := s.Store.RecentInteractions(ctx, req.TenantID, req.Sender, limit)
	if err != nil {
		return nil, fmt.Errorf("interaction history: %w", err)
	}
	if len(interactions) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Recent interactions with this contact:\n")
	for _, in := range interactions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", in.CreatedAt.Format("2006-01-02"), in.Subject, in.Summary)
	}
	return &Fragment{
		Name:     "interaction history",
		Content:  b.String(),
		Priority: s.Priority(),
		Source:   s.Name(),
	}, nil
}

type entityLister interface {
	EntitiesFor(ctx context.Context, tenantID, term string, limit int) ([]store.Entity, error)
}

// EntitySource contributes CRM entities whose names appear in the subject.
type EntitySource struct {
	Store entityLister
	Limit int
}

func (s *EntitySource) Name() string  { return "entity-data" }
func (s *EntitySource) Priority() int { return priorityEntities }

func (s *EntitySource) Fetch(ctx context.Context, req *task.Request) (*Fragment, error) {
	terms := entityTerms(req)
	if len(terms) == 0 {
		return nil, nil
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 5
	}

	seen := make(map[string]bool)
	var entities []store.Entity
	for _, term := range terms {
		found, err := s.Store.EntitiesFor(ctx, req.TenantID, term, limit)
		if err != nil {
			return nil, fmt.Errorf("entity lookup: %w", err)
		}
		for _, e := range found {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			entities = append(entities, e)
		}
	}
	if len(entities) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Related records:\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s)", e.Name, e.Kind)
		for k, v := range e.Attributes {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
		b.WriteString("\n")
	}
	return &Fragment{
		Name:     "entity data",
		Content:  b.String(),
		Priority: s.Priority(),
		Source:   s.Name(),
	}, nil
}

// entityTerms extracts lookup terms from the subject: words of 4+
// characters, which skips connective noise.
func entityTerms(req *task.Request) []string {
	var terms []string
	for _, word := range strings.Fields(req.Subject) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) >= 4 {
			terms = append(terms, word)
		}
	}
	return terms
}

type patternLister interface {
	PatternsFor(ctx context.Context, tenantID string, taskType task.Type, limit int) ([]store.Pattern, error)
}

// PatternSource contributes learned handling patterns for the task type.
type PatternSource struct {
	Store patternLister
	Limit int
}

func (s *PatternSource) Name() string  { return "learned-patterns" }
func (s *PatternSource) Priority() int { return priorityPatterns }

func (s *PatternSource) Fetch(ctx context.Context, req *task.Request) (*Fragment, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 3
	}
	patterns, err := s.Store.PatternsFor(ctx, req.TenantID, req.Type, limit)
	if err != nil {
		return nil, fmt.Errorf("pattern lookup: %w", err)
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Learned handling patterns:\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s\n", p.Description)
	}
	return &Fragment{
		Name:     "learned patterns",
		Content:  b.String(),
		Priority: s.Priority(),
		Source:   s.Name(),
	}, nil
}

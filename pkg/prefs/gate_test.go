package prefs

import (
	"strings"
	"testing"

	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/task"
)

func activeRule(name string, family Family, effect Effect, cond Condition) Rule {
	return Rule{Name: name, Family: family, Active: true, Effect: effect, Condition: cond}
}

func TestExclusionSuppressShortCircuits(t *testing.T) {
	rs := &RuleSet{
		AIEnabled: true,
		Rules: []Rule{
			activeRule("block-unsubscribe", FamilyExclusion, EffectSuppress,
				Contains{Field: FieldSubject, Terms: []string{"unsubscribe"}}),
			activeRule("late-escalate", FamilyFilter, EffectEscalate,
				Contains{Field: FieldSubject, Terms: []string{"unsubscribe"}}),
			activeRule("late-instruct", FamilyResponse, EffectInstruct,
				Contains{Field: FieldSubject, Terms: []string{"unsubscribe"}}),
		},
		GlobalInstructions: []string{"be polite"},
	}

	d := Evaluate(rs, Meta{Subject: "Please unsubscribe me"})
	if d.ShouldProcess {
		t.Fatalf("exclusion suppress must force should-process false")
	}
	if !strings.Contains(d.Rationale, "block-unsubscribe") {
		t.Fatalf("rationale should name the rule: %q", d.Rationale)
	}
	if len(d.Matched) != 1 {
		t.Fatalf("later rules must not run after exclusion suppress: %v", d.Matched)
	}
	if len(d.Instructions) != 0 {
		t.Fatalf("no instructions expected after short-circuit: %v", d.Instructions)
	}
}

func TestInactiveRulesAreSkipped(t *testing.T) {
	rs := &RuleSet{
		AIEnabled: true,
		Rules: []Rule{
			{Name: "off", Family: FamilyExclusion, Active: false, Effect: EffectSuppress,
				Condition: Contains{Field: FieldSubject, Terms: []string{"unsubscribe"}}},
		},
	}
	d := Evaluate(rs, Meta{Subject: "unsubscribe now"})
	if !d.ShouldProcess {
		t.Fatalf("inactive rule must not fire")
	}
}

func TestFilterEffectsAccumulate(t *testing.T) {
	rs := &RuleSet{
		AIEnabled: true,
		Rules: []Rule{
			activeRule("vip", FamilyFilter, EffectSetPriority,
				Equals{Field: FieldDomain, Value: "bigcorp.com"}),
			activeRule("billing-escalate", FamilyFilter, EffectEscalate,
				Contains{Field: FieldSubject, Terms: []string{"invoice"}}),
		},
	}
	rs.Rules[0].Priority = 5

	d := Evaluate(rs, Meta{Subject: "invoice overdue", Domain: "bigcorp.com"})
	if !d.ShouldProcess {
		t.Fatalf("filters should not suppress here")
	}
	if !d.ShouldEscalate {
		t.Fatalf("expected escalation")
	}
	if d.Priority != 5 {
		t.Fatalf("priority %d, want 5", d.Priority)
	}
	if len(d.Matched) != 2 {
		t.Fatalf("expected both filter rules to fire: %v", d.Matched)
	}
}

func TestGlobalInstructionsAlwaysAppended(t *testing.T) {
	rs := &RuleSet{
		AIEnabled:          true,
		GlobalInstructions: []string{"sign with the support team name"},
	}
	d := Evaluate(rs, Meta{Subject: "anything"})
	if len(d.Instructions) != 1 || d.Instructions[0] != "sign with the support team name" {
		t.Fatalf("global instructions missing: %v", d.Instructions)
	}
}

func TestResponseRuleAppendsInstruction(t *testing.T) {
	rs := &RuleSet{
		AIEnabled: true,
		Rules: []Rule{
			{Name: "refund-tone", Family: FamilyResponse, Active: true, Effect: EffectInstruct,
				Instruction: "apologize first",
				Condition:   Contains{Field: FieldSubject, Terms: []string{"refund"}}},
		},
		GlobalInstructions: []string{"keep it short"},
	}
	d := Evaluate(rs, Meta{Subject: "refund request"})
	if len(d.Instructions) != 2 {
		t.Fatalf("expected rule instruction plus global, got %v", d.Instructions)
	}
	if d.Instructions[0] != "apologize first" {
		t.Fatalf("rule instruction should precede globals: %v", d.Instructions)
	}
}

func TestGateMissingTenantEscalates(t *testing.T) {
	gate := NewGate(NewStaticTenants(&config.TenantsConfig{Tenants: map[string]config.TenantConfig{}}))
	d := gate.Check(&task.Request{ID: "t1", TenantID: "ghost", Type: task.TypeAnalyze})
	if d.ShouldProcess {
		t.Fatalf("missing tenant must not process")
	}
	if !d.ShouldEscalate {
		t.Fatalf("missing tenant must escalate")
	}
	if d.Rationale != "processing disabled" {
		t.Fatalf("rationale %q", d.Rationale)
	}
}

func TestGateAIDisabledEscalates(t *testing.T) {
	tenants := NewStaticTenants(&config.TenantsConfig{Tenants: map[string]config.TenantConfig{
		"acme": {AIEnabled: false},
	}})
	d := NewGate(tenants).Check(&task.Request{ID: "t1", TenantID: "acme", Type: task.TypeAnalyze})
	if d.ShouldProcess || !d.ShouldEscalate {
		t.Fatalf("disabled tenant must suppress and escalate: %+v", d)
	}
}

func TestCompiledSubjectContainsSuppression(t *testing.T) {
	tenants := NewStaticTenants(&config.TenantsConfig{Tenants: map[string]config.TenantConfig{
		"acme": {
			AIEnabled: true,
			Rules: []config.RuleConfig{
				{
					Name: "ignore-unsubscribe", Family: "exclusion", Active: true, Effect: "suppress",
					Condition: config.ConditionConfig{Kind: "contains", Field: "subject", Terms: []string{"unsubscribe"}},
				},
			},
		},
	}})
	gate := NewGate(tenants)

	d := gate.Check(&task.Request{
		ID: "t1", TenantID: "acme", Type: task.TypeAnalyze,
		Subject: "Unsubscribe me from this list", Sender: "user@example.com",
	})
	if d.ShouldProcess {
		t.Fatalf("expected suppression")
	}
	if !strings.Contains(d.Rationale, "ignore-unsubscribe") {
		t.Fatalf("rationale should name the firing rule: %q", d.Rationale)
	}
}

func TestUnrecognizedConditionFallsBackToSubjectSubstring(t *testing.T) {
	cond := CompileCondition(config.ConditionConfig{Kind: "regex_magic", Raw: "outage"})
	if !cond.Match(Meta{Subject: "major OUTAGE in region"}) {
		t.Fatalf("fallback substring should match subject")
	}
	if cond.Match(Meta{Subject: "all good", Sender: "outage@example.com"}) {
		t.Fatalf("fallback must only inspect the subject")
	}
}

func TestMalformedConditionNeverMatches(t *testing.T) {
	cond := CompileCondition(config.ConditionConfig{Kind: "contains", Field: "nonsense"})
	if cond.Match(Meta{Subject: "anything at all"}) {
		t.Fatalf("malformed condition must be treated as non-matching")
	}
}

func TestBooleanConditions(t *testing.T) {
	cond := CompileCondition(config.ConditionConfig{
		Kind: "and",
		All: []config.ConditionConfig{
			{Kind: "equals", Field: "task_type", Value: "draft_reply"},
			{Kind: "not", Inner: &config.ConditionConfig{Kind: "contains", Field: "domain", Terms: []string{"internal.test"}}},
		},
	})
	if !cond.Match(Meta{TaskType: "draft_reply", Domain: "example.com"}) {
		t.Fatalf("expected match")
	}
	if cond.Match(Meta{TaskType: "draft_reply", Domain: "internal.test"}) {
		t.Fatalf("not-clause should reject internal domain")
	}
}

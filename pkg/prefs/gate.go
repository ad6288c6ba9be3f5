// Package prefs evaluates tenant preference rules before any model is
// invoked. The safe default for a tenant without usable configuration is to
// escalate to a human, never to silently drop.
package prefs

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zen-systems/taskgate/pkg/config"
	"github.com/zen-systems/taskgate/pkg/task"
)

// Effect is the action a fired rule applies.
type Effect string

const (
	EffectSuppress    Effect = "suppress"
	EffectEscalate    Effect = "escalate"
	EffectSetPriority Effect = "set_priority"
	EffectInstruct    Effect = "instruct"
)

// Family orders rule evaluation: exclusions run first and can short-circuit,
// filters accumulate, response rules shape the eventual reply.
type Family string

const (
	FamilyExclusion Family = "exclusion"
	FamilyFilter    Family = "filter"
	FamilyResponse  Family = "response"
)

// DefaultPriority is the resolved priority when no rule sets one.
const DefaultPriority = 3

// Rule is one compiled, independently-toggleable preference rule.
type Rule struct {
	Name        string
	Family      Family
	Active      bool
	Condition   Condition
	Effect      Effect
	Priority    int
	Instruction string
}

// RuleSet is a tenant's compiled preference configuration.
type RuleSet struct {
	AIEnabled          bool
	Rules              []Rule
	GlobalInstructions []string
}

// Decision is the gate's verdict for one task. Computed once per request,
// before any model invocation.
type Decision struct {
	ShouldProcess  bool     `json:"should_process"`
	ShouldEscalate bool     `json:"should_escalate"`
	Priority       int      `json:"priority"`
	Instructions   []string `json:"instructions,omitempty"`
	Matched        []string `json:"matched,omitempty"`
	Rationale      string   `json:"rationale"`
}

// TenantProvider supplies compiled rule sets per tenant.
type TenantProvider interface {
	RuleSet(tenantID string) (*RuleSet, bool)
}

// Gate evaluates tenant preference rules against task metadata.
type Gate struct {
	tenants TenantProvider
}

// NewGate creates a Gate over a tenant provider.
func NewGate(tenants TenantProvider) *Gate {
	return &Gate{tenants: tenants}
}

// Check decides whether and how a task may be processed. A missing tenant
// configuration or disabled AI processing yields the safe default:
// do not process, escalate to a human.
func (g *Gate) Check(req *task.Request) *Decision {
	rs, ok := g.tenants.RuleSet(req.TenantID)
	if !ok || rs == nil || !rs.AIEnabled {
		log.Debug().Str("tenant", req.TenantID).Msg("processing disabled for tenant")
		return &Decision{
			ShouldProcess:  false,
			ShouldEscalate: true,
			Priority:       DefaultPriority,
			Rationale:      "processing disabled",
		}
	}
	meta := Meta{
		Subject:  req.Subject,
		Sender:   req.Sender,
		Domain:   req.SenderDomain(),
		TaskType: string(req.Type),
	}
	return Evaluate(rs, meta)
}

// Evaluate runs the rule families in strict order against the metadata.
func Evaluate(rs *RuleSet, meta Meta) *Decision {
	d := &Decision{
		ShouldProcess: true,
		Priority:      DefaultPriority,
	}

	// Exclusion rules: a suppress effect is final and stops all evaluation.
	for _, rule := range rs.rulesIn(FamilyExclusion) {
		if !rule.Condition.Match(meta) {
			continue
		}
		d.Matched = append(d.Matched, rule.Name)
		switch rule.Effect {
		case EffectSuppress:
			d.ShouldProcess = false
			d.Rationale = fmt.Sprintf("suppressed by exclusion rule %q", rule.Name)
			return d
		case EffectEscalate:
			d.ShouldEscalate = true
		}
	}

	// Filter rules: effects accumulate, no short-circuit.
	for _, rule := range rs.rulesIn(FamilyFilter) {
		if !rule.Condition.Match(meta) {
			continue
		}
		d.Matched = append(d.Matched, rule.Name)
		switch rule.Effect {
		case EffectSuppress:
			d.ShouldProcess = false
		case EffectEscalate:
			d.ShouldEscalate = true
		case EffectSetPriority:
			if rule.Priority > d.Priority {
				d.Priority = rule.Priority
			}
		case EffectInstruct:
			d.Instructions = append(d.Instructions, rule.Instruction)
		}
	}

	// Response rules: escalation and reply-shaping instructions.
	for _, rule := range rs.rulesIn(FamilyResponse) {
		if !rule.Condition.Match(meta) {
			continue
		}
		d.Matched = append(d.Matched, rule.Name)
		switch rule.Effect {
		case EffectEscalate:
			d.ShouldEscalate = true
		case EffectInstruct:
			d.Instructions = append(d.Instructions, rule.Instruction)
		}
	}

	// Global instructions apply regardless of which rules fired.
	d.Instructions = append(d.Instructions, rs.GlobalInstructions...)

	if d.Rationale == "" {
		switch {
		case !d.ShouldProcess:
			d.Rationale = fmt.Sprintf("suppressed by rules: %s", strings.Join(d.Matched, ", "))
		case len(d.Matched) > 0:
			d.Rationale = fmt.Sprintf("matched rules: %s", strings.Join(d.Matched, ", "))
		default:
			d.Rationale = "no rules matched"
		}
	}
	return d
}

// rulesIn returns the active rules of one family, in declaration order.
func (rs *RuleSet) rulesIn(family Family) []Rule {
	var out []Rule
	for _, rule := range rs.Rules {
		if rule.Active && rule.Family == family {
			out = append(out, rule)
		}
	}
	return out
}

// Compile turns a tenant's raw configuration into a compiled rule set.
// Conditions are parsed once here, not per task.
func Compile(tc config.TenantConfig) *RuleSet {
	rs := &RuleSet{
		AIEnabled:          tc.AIEnabled,
		GlobalInstructions: tc.GlobalInstructions,
	}
	for _, rc := range tc.Rules {
		rs.Rules = append(rs.Rules, Rule{
			Name:        rc.Name,
			Family:      parseFamily(rc.Family),
			Active:      rc.Active,
			Condition:   CompileCondition(rc.Condition),
			Effect:      parseEffect(rc.Effect),
			Priority:    rc.Priority,
			Instruction: rc.Instruction,
		})
	}
	return rs
}

// StaticTenants is a TenantProvider over compiled config.
type StaticTenants struct {
	rulesets map[string]*RuleSet
}

// NewStaticTenants compiles every tenant's configuration up front.
func NewStaticTenants(cfg *config.TenantsConfig) *StaticTenants {
	st := &StaticTenants{rulesets: make(map[string]*RuleSet)}
	if cfg == nil {
		return st
	}
	for id, tc := range cfg.Tenants {
		st.rulesets[id] = Compile(tc)
	}
	return st
}

// RuleSet returns the compiled rule set for a tenant.
func (st *StaticTenants) RuleSet(tenantID string) (*RuleSet, bool) {
	rs, ok := st.rulesets[tenantID]
	return rs, ok
}

func parseFamily(raw string) Family {
	switch Family(strings.ToLower(strings.TrimSpace(raw))) {
	case FamilyExclusion:
		return FamilyExclusion
	case FamilyResponse:
		return FamilyResponse
	default:
		// Unknown families behave as non-short-circuiting filters.
		return FamilyFilter
	}
}

func parseEffect(raw string) Effect {
	switch Effect(strings.ToLower(strings.TrimSpace(raw))) {
	case EffectSuppress:
		return EffectSuppress
	case EffectEscalate:
		return EffectEscalate
	case EffectSetPriority:
		return EffectSetPriority
	default:
		return EffectInstruct
	}
}

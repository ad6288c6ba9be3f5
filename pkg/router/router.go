// Package router maps scored tasks to model profiles.
package router

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/model"
	"github.com/zen-systems/taskgate/pkg/perf"
	"github.com/zen-systems/taskgate/pkg/task"
)

// Work-unit multipliers per complexity class.
const (
	simpleUnitFactor   = 2
	standardUnitFactor = 4
	complexUnitFactor  = 8
)

// Neutral defaults used when a triple has no history yet.
const (
	neutralSuccessRate  = 0.8
	neutralSatisfaction = 0.8
)

// Router selects a model for a scored task. Safe for concurrent use: the
// registry is read-mostly and the performance store locks per key.
type Router struct {
	registry    *model.Registry
	perf        *perf.Store
	narrowTypes map[task.Type]bool
	debug       bool
}

// Option configures a Router.
type Option func(*Router)

// WithNarrowTaskTypes marks task types as narrow and repetitive; such tasks
// always take the cheapest standard-capable model.
func WithNarrowTaskTypes(types ...task.Type) Option {
	return func(r *Router) {
		for _, t := range types {
			r.narrowTypes[t] = true
		}
	}
}

// WithDebug enables debug logging of selection steps.
func WithDebug(debug bool) Option {
	return func(r *Router) {
		r.debug = debug
	}
}

// New creates a Router over a profile registry and performance store.
func New(registry *model.Registry, store *perf.Store, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		perf:     store,
		narrowTypes: map[task.Type]bool{
			task.TypePatternExtract: true,
			task.TypeClassify:       true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route applies the static selection order:
//  1. a valid caller override wins,
//  2. external-system or cross-entity flags force the highest-capability model,
//  3. narrow repetitive task types force the cheapest standard-capable model,
//  4. otherwise select by complexity class.
func (r *Router) Route(req *task.Request, score complexity.Score) (*Decision, error) {
	class := score.Class

	if req.ModelOverride != "" {
		if p, ok := r.registry.Get(req.ModelOverride); ok && p.SuitableFor(class) && p.Admits(len(req.Text)) {
			return r.decide(req, p, class, score.Confidence, "caller override"), nil
		}
		if r.debug {
			log.Debug().Str("override", req.ModelOverride).Str("class", string(class)).
				Msg("override rejected: unknown model, class not supported, or input too large")
		}
	}

	if req.Flags.ExternalSystem || req.Flags.CrossEntity {
		p, ok := r.registry.BestFor(complexity.ClassComplex, len(req.Text))
		if !ok {
			return nil, fmt.Errorf("no model suitable for complex tasks")
		}
		return r.decide(req, p, complexity.ClassComplex, score.Confidence,
			"external system dependency: selecting highest-capability model"), nil
	}

	if r.narrowTypes[req.Type] {
		p, ok := r.registry.CheapestFor(complexity.ClassStandard, len(req.Text))
		if !ok {
			return nil, fmt.Errorf("no model suitable for standard tasks")
		}
		return r.decide(req, p, complexity.ClassStandard, score.Confidence,
			fmt.Sprintf("narrow repetitive task type %q: selecting cheapest capable model", req.Type)), nil
	}

	switch class {
	case complexity.ClassComplex:
		p, ok := r.registry.BestFor(class, len(req.Text))
		if !ok {
			return nil, fmt.Errorf("no model suitable for class %s", class)
		}
		return r.decide(req, p, class, score.Confidence,
			"complex task: selecting highest-capability model"), nil
	default:
		p, ok := r.registry.CheapestFor(class, len(req.Text))
		if !ok {
			return nil, fmt.Errorf("no model suitable for class %s", class)
		}
		return r.decide(req, p, class, score.Confidence,
			fmt.Sprintf("%s task: selecting cheapest capable model", class)), nil
	}
}

func (r *Router) decide(req *task.Request, chosen *model.Profile, class complexity.Class, confidence float64, reason string) *Decision {
	units := estimateUnits(len(req.Text), class)
	d := &Decision{
		Model:          chosen.ID,
		Class:          class,
		Confidence:     confidence,
		Reasons:        []string{reason},
		Alternatives:   r.alternatives(chosen.ID, class, len(req.Text)),
		EstimatedUnits: units,
		EstimatedCost:  float64(units) * chosen.CostPerUnit,
	}
	if r.debug {
		log.Debug().Str("model", d.Model).Str("class", string(class)).
			Str("reason", reason).Float64("est_cost", d.EstimatedCost).
			Msg("routing decision")
	}
	return d
}

// alternatives lists every other model supporting class and admitting the
// input, ordered by descending declared accuracy.
func (r *Router) alternatives(chosen string, class complexity.Class, inputLen int) []string {
	profiles := r.registry.ForClass(class)
	others := make([]*model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.ID != chosen && p.Admits(inputLen) {
			others = append(others, p)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		return others[i].Capability.Accuracy > others[j].Capability.Accuracy
	})
	ids := make([]string, 0, len(others))
	for _, p := range others {
		ids = append(ids, p.ID)
	}
	return ids
}

// Recommend scores every candidate supporting the resolved class using a
// blend of static capability and learned performance, and picks the best.
// Triples with no history score against neutral defaults rather than being
// skipped. Set preferSpeed to weight latency over accuracy.
func (r *Router) Recommend(req *task.Request, score complexity.Score, preferSpeed bool) (*Decision, error) {
	class := score.Class
	var candidates []*model.Profile
	for _, p := range r.registry.ForClass(class) {
		if p.Admits(len(req.Text)) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no model suitable for class %s", class)
	}

	type scored struct {
		profile *model.Profile
		value   float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		ranked = append(ranked, scored{profile: p, value: r.blendScore(p, req.Type, class, preferSpeed)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	best := ranked[0]
	return r.decide(req, best.profile, class, score.Confidence,
		fmt.Sprintf("learned recommendation: blended score %.3f over %d candidates", best.value, len(ranked))), nil
}

func (r *Router) blendScore(p *model.Profile, taskType task.Type, class complexity.Class, preferSpeed bool) float64 {
	successRate := neutralSuccessRate
	satisfaction := neutralSatisfaction
	if rec, ok := r.perf.Lookup(perf.Key{Model: p.ID, TaskType: taskType, Class: class}); ok && rec.Observations > 0 {
		successRate = rec.SuccessRate
		if rec.Rated > 0 {
			satisfaction = rec.Satisfaction
		}
	}

	static := float64(p.Capability.Reasoning+p.Capability.Accuracy) / 20.0
	if preferSpeed {
		static = float64(p.Capability.Speed*2+p.Capability.Accuracy) / 30.0
	}
	return 0.4*static + 0.35*successRate + 0.25*satisfaction
}

// ReportOverrideOutcome closes the override feedback loop: a successful
// caller override records a positive observation for the chosen model and a
// negative one for the originally suggested model, both at the resolved
// complexity. An unsuccessful override records the inverse pair.
func (r *Router) ReportOverrideOutcome(chosen, suggested string, taskType task.Type, class complexity.Class, obs perf.Observation) {
	r.perf.Record(perf.Key{Model: chosen, TaskType: taskType, Class: class}, obs)
	if suggested == "" || suggested == chosen {
		return
	}
	inverse := perf.Observation{Success: !obs.Success, Latency: obs.Latency}
	r.perf.Record(perf.Key{Model: suggested, TaskType: taskType, Class: class}, inverse)
}

func estimateUnits(inputLen int, class complexity.Class) int {
	factor := standardUnitFactor
	switch class {
	case complexity.ClassSimple:
		factor = simpleUnitFactor
	case complexity.ClassComplex:
		factor = complexUnitFactor
	}
	if inputLen < 1 {
		inputLen = 1
	}
	return inputLen * factor
}

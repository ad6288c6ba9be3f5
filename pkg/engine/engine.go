// Package engine orchestrates task processing: gate check, complexity
// analysis, routing, context assembly, and model invocation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zen-systems/taskgate/pkg/assemble"
	"github.com/zen-systems/taskgate/pkg/cache"
	"github.com/zen-systems/taskgate/pkg/complexity"
	"github.com/zen-systems/taskgate/pkg/model"
	"github.com/zen-systems/taskgate/pkg/perf"
	"github.com/zen-systems/taskgate/pkg/prefs"
	"github.com/zen-systems/taskgate/pkg/provider"
	"github.com/zen-systems/taskgate/pkg/router"
	"github.com/zen-systems/taskgate/pkg/task"
)

// Result is the outcome of processing one task.
type Result struct {
	InvocationID    string           `json:"invocation_id"`
	TaskID          string           `json:"task_id"`
	Processed       bool             `json:"processed"`
	Escalated       bool             `json:"escalated"`
	Output          string           `json:"output,omitempty"`
	Score           complexity.Score `json:"score"`
	Routing         *router.Decision `json:"routing,omitempty"`
	Gate            *prefs.Decision  `json:"gate"`
	Usage           provider.Usage   `json:"usage"`
	Cost            float64          `json:"cost"`
	CacheHit        bool             `json:"cache_hit"`
	DegradedSources []string         `json:"degraded_sources,omitempty"`
	LatencyMs       int64            `json:"latency_ms"`
}

// ProcessOptions tune one Process call.
type ProcessOptions struct {
	// UseCache serves and stores results keyed by task fingerprint. Only
	// enable for task types whose output is stable across invocations.
	UseCache bool
	// Ranked selects by blended learned performance instead of the static
	// selection order.
	Ranked bool
	// PreferSpeed biases ranked selection toward faster models.
	PreferSpeed bool
}

// Engine wires the routing pipeline together. Construct once, share across
// goroutines.
type Engine struct {
	registry  *model.Registry
	perf      *perf.Store
	gate      *prefs.Gate
	router    *router.Router
	assembler *assemble.Assembler
	providers map[string]provider.Provider
	cache     *cache.Cache[Result]
	costs     *Tracker

	retryBackoff time.Duration
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAssembler sets the context assembler. Without one, prompts carry only
// the task text and gate instructions.
func WithAssembler(a *assemble.Assembler) Option {
	return func(e *Engine) {
		e.assembler = a
	}
}

// WithCache enables result caching.
func WithCache(c *cache.Cache[Result]) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCostTracker sets the spend tracker.
func WithCostTracker(t *Tracker) Option {
	return func(e *Engine) {
		e.costs = t
	}
}

// WithRetryBackoff sets the pause before the single transient-error retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retryBackoff = d
	}
}

// New creates an Engine.
func New(
	registry *model.Registry,
	perfStore *perf.Store,
	gate *prefs.Gate,
	rt *router.Router,
	providers map[string]provider.Provider,
	opts ...Option,
) *Engine {
	e := &Engine{
		registry:     registry,
		perf:         perfStore,
		gate:         gate,
		router:       rt,
		providers:    providers,
		costs:        NewTracker(nil),
		retryBackoff: 200 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs one task through the full pipeline. The gate is consulted
// before any model work; a non-processing verdict returns a Result with
// Processed false and no error.
func (e *Engine) Process(ctx context.Context, req *task.Request, opts ProcessOptions) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := e.now()

	res := &Result{
		InvocationID: uuid.New().String(),
		TaskID:       req.ID,
	}

	res.Gate = e.gate.Check(req)
	if !res.Gate.ShouldProcess {
		res.Escalated = res.Gate.ShouldEscalate
		res.LatencyMs = e.now().Sub(start).Milliseconds()
		log.Info().Str("task", req.ID).Str("tenant", req.TenantID).
			Str("rationale", res.Gate.Rationale).Msg("gate declined processing")
		return res, nil
	}

	res.Score = complexity.Analyze(req.Text, req.Flags)

	var fingerprint string
	if opts.UseCache && e.cache != nil {
		fingerprint = cache.Fingerprint(req.ID, req.Text, string(req.Type))
		if cached, ok := e.cache.Get(fingerprint); ok {
			cached.InvocationID = res.InvocationID
			cached.Gate = res.Gate
			cached.Escalated = res.Gate.ShouldEscalate
			cached.CacheHit = true
			// A hit consumed no tokens and cost nothing.
			cached.Usage = provider.Usage{}
			cached.Cost = 0
			cached.LatencyMs = e.now().Sub(start).Milliseconds()
			log.Debug().Str("task", req.ID).Msg("serving cached result")
			return &cached, nil
		}
	}

	var decision *router.Decision
	var err error
	if opts.Ranked {
		decision, err = e.router.Recommend(req, res.Score, opts.PreferSpeed)
	} else {
		decision, err = e.router.Route(req, res.Score)
	}
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}
	res.Routing = decision

	profile, ok := e.registry.Get(decision.Model)
	if !ok {
		return nil, fmt.Errorf("routed to unknown model %q", decision.Model)
	}
	prov, ok := e.providers[profile.Provider]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", profile.Provider)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var bundle *assemble.Bundle
	if e.assembler != nil {
		bundle = e.assembler.Assemble(ctx, req)
		res.DegradedSources = bundle.Failed
	}

	// Cancellation during assembly must not reach the provider.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(req, bundle, res.Gate.Instructions)

	completion, err := e.complete(ctx, prov, profile.ProviderModel, prompt)
	latency := e.now().Sub(start)
	res.LatencyMs = latency.Milliseconds()

	key := perf.Key{Model: decision.Model, TaskType: req.Type, Class: res.Score.Class}
	e.perf.Record(key, perf.Observation{Success: err == nil, Latency: latency})

	if err != nil {
		log.Error().Err(err).Str("task", req.ID).Str("model", decision.Model).
			Msg("completion failed")
		return nil, fmt.Errorf("model %s: %w", decision.Model, err)
	}

	res.Processed = true
	res.Escalated = res.Gate.ShouldEscalate
	res.Output = completion.Text
	res.Usage = completion.Usage
	res.Cost = e.costs.Record(decision.Model, completion.Usage)

	if fingerprint != "" {
		e.cache.Put(fingerprint, *res)
	}

	log.Info().Str("task", req.ID).Str("model", decision.Model).
		Str("class", string(res.Score.Class)).Int64("latency_ms", res.LatencyMs).
		Float64("cost", res.Cost).Msg("task processed")
	return res, nil
}

// complete invokes the provider, retrying once after a transient failure.
func (e *Engine) complete(ctx context.Context, prov provider.Provider, providerModel, prompt string) (*provider.Completion, error) {
	completion, err := prov.Complete(ctx, providerModel, prompt)
	if err == nil || !provider.IsTransient(err) {
		return completion, err
	}

	log.Warn().Err(err).Str("model", providerModel).Msg("transient provider error, retrying once")
	timer := time.NewTimer(e.retryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return prov.Complete(ctx, providerModel, prompt)
}

// Feedback is a reported outcome for a completed task.
type Feedback struct {
	Model string
	// SuggestedModel is set when the caller overrode routing; the inverse
	// outcome is credited to the model the router wanted.
	SuggestedModel string
	TaskType       task.Type
	Class          complexity.Class
	Success        bool
	Latency        time.Duration
	// Rating is an optional satisfaction rating 1-5; zero means unrated.
	Rating int
}

// ReportFeedback folds a task outcome into the performance store.
func (e *Engine) ReportFeedback(fb Feedback) {
	obs := perf.Observation{Success: fb.Success, Latency: fb.Latency, Rating: fb.Rating}
	if fb.SuggestedModel != "" && fb.SuggestedModel != fb.Model {
		e.router.ReportOverrideOutcome(fb.Model, fb.SuggestedModel, fb.TaskType, fb.Class, obs)
		return
	}
	e.perf.Record(perf.Key{Model: fb.Model, TaskType: fb.TaskType, Class: fb.Class}, obs)
}

// Costs returns the accumulated spend report.
func (e *Engine) Costs() CostReport {
	return e.costs.Report()
}

// buildPrompt renders the model prompt: tenant instructions first, then
// assembled context, then the task itself.
func buildPrompt(req *task.Request, bundle *assemble.Bundle, instructions []string) string {
	var b strings.Builder

	if len(instructions) > 0 {
		b.WriteString("Instructions:\n")
		for _, ins := range instructions {
			fmt.Fprintf(&b, "- %s\n", ins)
		}
		b.WriteString("\n")
	}

	if bundle != nil && len(bundle.Fragments) > 0 {
		b.WriteString("Context:\n")
		for _, frag := range bundle.Fragments {
			b.WriteString(frag.Content)
			if !strings.HasSuffix(frag.Content, "\n") {
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Task (%s)", req.Type)
	if req.Subject != "" {
		fmt.Fprintf(&b, ", subject: %s", req.Subject)
	}
	if req.Sender != "" {
		fmt.Fprintf(&b, ", from: %s", req.Sender)
	}
	b.WriteString("\n")
	b.WriteString(req.Text)
	return b.String()
}

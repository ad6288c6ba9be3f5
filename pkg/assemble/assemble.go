// Package assemble builds a bounded context bundle for a task by querying
// independent sources concurrently, tolerating partial failure.
package assemble

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/taskgate/pkg/task"
)

// Fragment is one named piece of supporting context.
type Fragment struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
	Source   string `json:"source"`
}

// Source provides at most one fragment per request. Fetch must honor ctx and
// return an error for failure; returning (nil, nil) means explicit absence.
type Source interface {
	Name() string
	// Priority orders merged fragments: lower values merge first and are
	// dropped last when the bundle must be trimmed.
	Priority() int
	Fetch(ctx context.Context, req *task.Request) (*Fragment, error)
}

// Bundle holds whatever fragments were obtained. Built once per request and
// read-only afterward.
type Bundle struct {
	Fragments   []Fragment `json:"fragments"`
	Contributed []string   `json:"contributed,omitempty"`
	Failed      []string   `json:"failed,omitempty"`
}

// Has reports whether a named source contributed.
func (b *Bundle) Has(source string) bool {
	for _, name := range b.Contributed {
		if name == source {
			return true
		}
	}
	return false
}

// Size is the total content size of all fragments in bytes.
func (b *Bundle) Size() int {
	total := 0
	for _, f := range b.Fragments {
		total += len(f.Content)
	}
	return total
}

// Assembler fans out to its sources once per request. Retries, if desired,
// are the caller's responsibility with a fresh invocation.
type Assembler struct {
	sources  []Source
	timeout  time.Duration
	maxBytes int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSourceTimeout bounds each individual source fetch.
func WithSourceTimeout(timeout time.Duration) Option {
	return func(a *Assembler) {
		a.timeout = timeout
	}
}

// WithMaxBundleBytes bounds the assembled bundle; lowest-priority fragments
// are dropped first when trimming.
func WithMaxBundleBytes(max int) Option {
	return func(a *Assembler) {
		a.maxBytes = max
	}
}

// New creates an Assembler over the given sources.
func New(sources []Source, opts ...Option) *Assembler {
	a := &Assembler{
		sources:  sources,
		timeout:  2 * time.Second,
		maxBytes: 32 * 1024,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fetchResult struct {
	source   string
	fragment *Fragment
	err      error
}

// Assemble queries every source concurrently and merges whatever fragments
// arrive within the per-source timeout. It never fails because a source
// failed: the worst case is an empty, non-nil bundle. Cancelling ctx
// cancels all outstanding fetches.
func (a *Assembler) Assemble(ctx context.Context, req *task.Request) *Bundle {
	results := make([]fetchResult, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.fetchOne(gctx, src, req)
			return nil
		})
	}
	// Workers never return errors; Wait only blocks until all settle.
	_ = g.Wait()

	bundle := &Bundle{}
	for _, res := range results {
		if res.err != nil || res.fragment == nil {
			bundle.Failed = append(bundle.Failed, res.source)
			if res.err != nil {
				log.Debug().Str("source", res.source).Err(res.err).Msg("context source unavailable")
			}
			continue
		}
		bundle.Fragments = append(bundle.Fragments, *res.fragment)
		bundle.Contributed = append(bundle.Contributed, res.source)
	}

	// Fixed merge order: primary domain data before historical data before
	// learned patterns, so trimming drops the least important first.
	sort.SliceStable(bundle.Fragments, func(i, j int) bool {
		return bundle.Fragments[i].Priority < bundle.Fragments[j].Priority
	})
	a.trim(bundle)

	return bundle
}

// fetchOne bounds a single fetch by the per-source timeout and converts any
// failure, timeout, or panic into an explicit absence.
func (a *Assembler) fetchOne(ctx context.Context, src Source, req *task.Request) (res fetchResult) {
	res.source = src.Name()
	defer func() {
		if r := recover(); r != nil {
			res.fragment = nil
			res.err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	frag, err := src.Fetch(fetchCtx, req)
	if err != nil {
		res.err = err
		return res
	}
	if frag != nil {
		frag.Source = src.Name()
		frag.Priority = src.Priority()
	}
	res.fragment = frag
	return res
}

func (a *Assembler) trim(bundle *Bundle) {
	if a.maxBytes <= 0 {
		return
	}
	for bundle.Size() > a.maxBytes && len(bundle.Fragments) > 0 {
		dropped := bundle.Fragments[len(bundle.Fragments)-1]
		bundle.Fragments = bundle.Fragments[:len(bundle.Fragments)-1]
		log.Debug().Str("fragment", dropped.Name).Int("bytes", len(dropped.Content)).
			Msg("trimmed low-priority fragment from bundle")
	}
}

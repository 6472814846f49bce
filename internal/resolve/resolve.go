// Package resolve materializes deferred file content before an archive is
// serialized.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// DefaultConcurrency is the number of sources resolved at once when no
// WithConcurrency option is set.
const DefaultConcurrency = 4

// Source produces content on demand.
type Source interface {
	Resolve(ctx context.Context) ([]byte, error)
}

// Sized is implemented by sources that know their content length up front.
// The resolved content must match the declared size.
type Sized interface {
	Size() int64
}

// Identified is implemented by sources with a stable content identifier.
// Sources sharing an identifier are resolved once per Resolve call.
type Identified interface {
	SourceID() string
}

// Job is a named source awaiting resolution.
type Job struct {
	Name   string
	Source Source
}

// Resolver resolves jobs concurrently.
type Resolver struct {
	concurrency int
	budget      int64
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency sets the number of sources resolved at once.
// Values < 1 force serial resolution.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithBudget caps the total declared size of sources being resolved at
// once. Sources without a declared size are not counted. A value of 0
// disables the budget.
func WithBudget(limit int64) Option {
	return func(r *Resolver) {
		if limit < 0 {
			limit = 0
		}
		r.budget = limit
	}
}

// WithLogger sets the logger for resolution.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Resolve returns the content of each job, indexed like jobs. Jobs with a
// nil Source resolve to nil. The first failure cancels the remaining work
// and is returned; no partial results are returned with it.
func (r *Resolver) Resolve(ctx context.Context, jobs []Job) ([][]byte, error) {
	results := make([][]byte, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var budget *semaphore.Weighted
	if r.budget > 0 {
		budget = semaphore.NewWeighted(r.budget)
	}

	var (
		group singleflight.Group
		mu    sync.Mutex
		memo  = make(map[string][]byte)
	)

	for i, job := range jobs {
		if job.Source == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			weight := r.weight(job.Source)
			if budget != nil && weight > 0 {
				if err := budget.Acquire(gctx, weight); err != nil {
					return err
				}
				defer budget.Release(weight)
			}

			data, err := r.resolveOne(gctx, job, &group, &mu, memo)
			if err != nil {
				return err
			}
			results[i] = data
			r.log().Debug("source resolved", "name", job.Name, "size", len(data))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// weight returns the budget share a source takes while resolving.
func (r *Resolver) weight(src Source) int64 {
	sized, ok := src.(Sized)
	if !ok {
		return 0
	}
	w := sized.Size()
	if w < 0 {
		return 0
	}
	return min(w, r.budget)
}

// resolveOne resolves a single job, sharing results between sources with
// the same identifier.
func (r *Resolver) resolveOne(ctx context.Context, job Job, group *singleflight.Group, mu *sync.Mutex, memo map[string][]byte) ([]byte, error) {
	id, ok := job.Source.(Identified)
	if !ok || id.SourceID() == "" {
		return resolveChecked(ctx, job)
	}
	key := id.SourceID()

	result, err, shared := group.Do(key, func() (any, error) {
		mu.Lock()
		data, hit := memo[key]
		mu.Unlock()
		if hit {
			return data, nil
		}
		data, err := resolveChecked(ctx, job)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		memo[key] = data
		mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log().Debug("source shared", "name", job.Name, "source_id", key)
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// resolveChecked resolves a job and validates the declared size.
func resolveChecked(ctx context.Context, job Job) ([]byte, error) {
	data, err := job.Source.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", job.Name, err)
	}
	if sized, ok := job.Source.(Sized); ok && sized.Size() >= 0 && sized.Size() != int64(len(data)) {
		return nil, fmt.Errorf("resolve %s: declared size %d, resolved %d bytes", job.Name, sized.Size(), len(data))
	}
	return data, nil
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"harvest/internal/faults"
	"harvest/internal/fetch"
	"harvest/internal/logging"
	"harvest/internal/record"
)

// ParserFunc turns one envelope into domain objects. Returning a nil set
// contributes nothing. Parsers signal an unexpected payload shape with
// faults.ErrMissingElement.
type ParserFunc func(env fetch.Envelope) (*record.ResultSet, error)

// ResolverFunc fetches the full object behind a placeholder. Returning a nil
// object means this resolver could not help; the next one is tried.
type ResolverFunc func(ctx context.Context, session Session, placeholder *record.Placeholder) (record.Object, error)

// Session is the API owner resolvers talk to: it fetches targets and parses
// the resulting envelopes through the same registry.
type Session interface {
	Fetch(ctx context.Context, target string) (fetch.Envelope, error)
	Parse(env fetch.Envelope) (*record.ResultSet, error)
}

// Options tune bulk resolution.
type Options struct {
	// Concurrency bounds the number of placeholders resolved at once.
	Concurrency int
	// IgnoreUpstreamFailures keeps the placeholder and continues when a
	// resolver reports faults.ErrUpstreamFailure.
	IgnoreUpstreamFailures bool
}

type parserKey struct {
	resource string
	shape    fetch.Shape
}

// Registry holds parser and resolver registrations.
type Registry struct {
	mu        sync.RWMutex
	sealed    bool
	parsers   map[parserKey][]ParserFunc
	resolvers map[record.Kind][]ResolverFunc
	logger    *slog.Logger
}

// New constructs an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		parsers:   make(map[parserKey][]ParserFunc),
		resolvers: make(map[record.Kind][]ResolverFunc),
		logger:    logging.NewComponentLogger(logger, "registry"),
	}
}

// RegisterParser appends fn to the parsers for (resource, shape).
func (r *Registry) RegisterParser(resource string, shape fetch.Shape, fn ParserFunc) error {
	if resource == "" || fn == nil {
		return faults.Wrap(faults.ErrUsage, "registry", "register parser", "resource and parser are required", nil)
	}
	if shape != fetch.ShapeHTML && shape != fetch.ShapeJSON {
		return faults.Wrap(faults.ErrUsage, "registry", "register parser", fmt.Sprintf("unknown payload shape %q", shape), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return faults.Wrap(faults.ErrUsage, "registry", "register parser", "registry is sealed", nil)
	}
	key := parserKey{resource: resource, shape: shape}
	r.parsers[key] = append(r.parsers[key], fn)
	return nil
}

// RegisterResolver appends fn to the resolvers for placeholders of kind.
func (r *Registry) RegisterResolver(kind record.Kind, fn ResolverFunc) error {
	if kind == "" || kind == record.KindPlaceholder || fn == nil {
		return faults.Wrap(faults.ErrUsage, "registry", "register resolver", fmt.Sprintf("invalid resolver registration for kind %q", kind), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return faults.Wrap(faults.ErrUsage, "registry", "register resolver", "registry is sealed", nil)
	}
	r.resolvers[kind] = append(r.resolvers[kind], fn)
	return nil
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// ParserCount returns how many parsers are registered for (resource, shape).
func (r *Registry) ParserCount(resource string, shape fetch.Shape) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers[parserKey{resource: resource, shape: shape}])
}

// Parse runs every parser registered for the envelope's exact key and merges
// their output. An unknown key yields an empty set.
func (r *Registry) Parse(env fetch.Envelope) (*record.ResultSet, error) {
	r.mu.RLock()
	parsers := r.parsers[parserKey{resource: env.Resource(), shape: env.Shape()}]
	r.mu.RUnlock()

	out := record.NewResultSet()
	if len(parsers) == 0 {
		r.logger.Debug("no parser registered",
			logging.String(logging.FieldResource, env.Resource()),
			logging.String("shape", string(env.Shape())),
		)
		return out, nil
	}
	for _, parse := range parsers {
		rs, err := parse(env)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", env, err)
		}
		out.Merge(rs)
	}
	return out, nil
}

// ResolveOne tries each resolver for the placeholder's target kind. The first
// non-nil object wins, a typed nil counting as nil; otherwise the placeholder
// itself is returned.
func (r *Registry) ResolveOne(ctx context.Context, session Session, placeholder *record.Placeholder) (record.Object, error) {
	if placeholder == nil {
		return nil, faults.Wrap(faults.ErrUsage, "registry", "resolve", "nil placeholder", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	resolvers := r.resolvers[placeholder.Target]
	r.mu.RUnlock()

	for _, resolve := range resolvers {
		obj, err := resolve(ctx, session, placeholder)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", placeholder, err)
		}
		if !record.IsNil(obj) {
			return obj, nil
		}
	}
	return placeholder, nil
}

// Resolve resolves placeholders with bounded parallelism. The returned set
// holds one entry per input placeholder, in input order: either the resolved
// object or the placeholder itself.
func (r *Registry) Resolve(ctx context.Context, session Session, placeholders []*record.Placeholder, opts Options) (*record.ResultSet, error) {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	logger := logging.WithContext(ctx, r.logger)

	out := make([]record.Object, len(placeholders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, placeholder := range placeholders {
		g.Go(func() error {
			obj, err := r.ResolveOne(gctx, session, placeholder)
			if err == nil {
				out[i] = obj
				return nil
			}
			if opts.IgnoreUpstreamFailures && errors.Is(err, faults.ErrUpstreamFailure) {
				logging.WarnWithContext(logger, "upstream failure ignored", "resolve_upstream_failure",
					logging.String(logging.FieldKind, string(placeholder.Target)),
					logging.String(logging.FieldRecordID, placeholder.Ident),
					logging.Error(err),
					logging.String(logging.FieldImpact, "placeholder kept unresolved"),
					logging.String(logging.FieldErrorHint, "the upstream source no longer serves this record"),
				)
				out[i] = placeholder
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := 0
	for _, obj := range out {
		if _, ok := obj.(*record.Placeholder); !ok {
			resolved++
		}
	}
	logger.Debug("placeholders resolved",
		logging.Int(logging.FieldCount, resolved),
		logging.Int("outstanding", len(out)-resolved),
	)
	return record.NewResultSet(out...), nil
}

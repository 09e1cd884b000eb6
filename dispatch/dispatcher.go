// Package dispatch runs each request through normalization, the primary
// provider, the local fallback and envelope assembly.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/c360studio/contentmesh/envelope"
	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/resolve"
	"github.com/c360studio/contentmesh/task"
)

// Stage names a step of the dispatch chain.
type Stage string

const (
	StageNormalizing       Stage = "normalizing"
	StageResolvingPrimary  Stage = "resolving_primary"
	StageResolvingFallback Stage = "resolving_fallback"
	StageAssembling        Stage = "assembling"
	StageDone              Stage = "done"
)

// PrimaryResolver attempts the provider-backed path. *resolve.Primary implements it.
type PrimaryResolver interface {
	Resolve(ctx context.Context, t task.Task) (*resolve.Result, error)
}

// Publisher receives every finished envelope.
type Publisher interface {
	Publish(ctx context.Context, env *envelope.Envelope) error
}

// Dispatcher is the composition root of the request chain. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	service    string
	normalizer *task.Normalizer
	primary    PrimaryResolver
	fallback   *resolve.Fallback
	assembler  *envelope.Assembler
	metrics    *Metrics
	publisher  Publisher
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithNormalizer sets the request normalizer.
func WithNormalizer(n *task.Normalizer) Option {
	return func(d *Dispatcher) { d.normalizer = n }
}

// WithFallback sets the fallback resolver.
func WithFallback(f *resolve.Fallback) Option {
	return func(d *Dispatcher) { d.fallback = f }
}

// WithAssembler sets the envelope assembler.
func WithAssembler(a *envelope.Assembler) Option {
	return func(d *Dispatcher) { d.assembler = a }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithPublisher publishes every envelope after it is built.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithClock sets the time source for request receipt.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a dispatcher for the named service. A nil primary makes every
// request fall back with missing_credentials.
func New(service string, primary PrimaryResolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		service: service,
		primary: primary,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.normalizer == nil {
		d.normalizer = task.NewNormalizer(0)
	}
	if d.fallback == nil {
		d.fallback = resolve.NewFallback(resolve.WithClock(d.now))
	}
	if d.assembler == nil {
		d.assembler = envelope.NewAssembler(envelope.WithClock(d.now), envelope.WithLogger(d.logger))
	}
	return d
}

// Dispatch handles one request. routeKind is the kind bound to the route;
// KindAuto derives it from the payload's content_type. The returned envelope
// is never nil.
func (d *Dispatcher) Dispatch(ctx context.Context, routeKind task.Kind, payload map[string]any) *envelope.Envelope {
	received := d.now()
	kind := task.ResolveKind(routeKind, payload)
	rc := task.NewRequestContext(kind, d.service, received)

	env := d.run(ctx, rc, payload)

	d.metrics.observe(env, d.now().Sub(received))
	d.publish(ctx, env)
	return env
}

// run walks the chain. Panics anywhere in it become internal faults.
func (d *Dispatcher) run(ctx context.Context, rc task.RequestContext, payload map[string]any) (env *envelope.Envelope) {
	stage := StageNormalizing
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatch panicked",
				"execution_id", rc.ExecutionID,
				"stage", stage,
				"panic", r,
				"stack", string(debug.Stack()))
			env = d.assembler.Error(rc, envelope.ErrorInternalFault, fmt.Errorf("internal fault during %s: %v", stage, r))
		}
	}()

	t, err := d.normalizer.Normalize(rc.Kind, payload)
	if err != nil {
		var invalid *task.InvalidRequestError
		if errors.As(err, &invalid) {
			d.logger.Info("Rejected request",
				"execution_id", rc.ExecutionID,
				"kind", rc.Kind,
				"error", err)
			return d.assembler.Error(rc, envelope.ErrorInvalidRequest, err)
		}
		d.logger.Error("Normalization failed", "execution_id", rc.ExecutionID, "error", err)
		return d.assembler.Error(rc, envelope.ErrorInternalFault, err)
	}
	rc = rc.WithTask(t)

	stage = StageResolvingPrimary
	res, primaryErr := d.resolvePrimary(ctx, t)

	if primaryErr != nil {
		reason := llm.ReasonOf(primaryErr)
		d.metrics.primaryFailure(reason)
		d.logger.Warn("Primary provider failed, using fallback",
			"execution_id", rc.ExecutionID,
			"kind", t.Kind,
			"reason", reason,
			"error", primaryErr)

		stage = StageResolvingFallback
		res = d.fallback.Resolve(t)
	}

	stage = StageAssembling
	env = d.assembler.Assemble(rc, res, primaryErr)
	stage = StageDone

	d.logger.Debug("Dispatched",
		"execution_id", env.ExecutionID,
		"kind", t.Kind,
		"provenance", res.Provenance,
		"elapsed_ms", env.Result.ExecutionTimeMS)
	return env
}

func (d *Dispatcher) resolvePrimary(ctx context.Context, t task.Task) (*resolve.Result, error) {
	if d.primary == nil {
		return nil, llm.NewFailure(llm.ReasonMissingCredentials, errors.New("no primary provider configured"))
	}
	res, err := d.primary.Resolve(ctx, t)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, llm.NewFailure(llm.ReasonMalformedUpstreamBody, errors.New("primary returned no result"))
	}
	return res, nil
}

func (d *Dispatcher) publish(ctx context.Context, env *envelope.Envelope) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, env); err != nil {
		d.logger.Warn("Failed to publish dispatch outcome",
			"execution_id", env.ExecutionID,
			"error", err)
	}
}

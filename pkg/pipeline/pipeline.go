// Package pipeline orchestrates a bounded-concurrency fetch of a two-level
// resource graph: acquire the root lock, fetch the ordered child references,
// resolve each child's detail through the shared concurrency limiter with
// local retries, and assemble results in the original reference order.
//
// Failure policy: a child whose retries are exhausted does not abort the run.
// Its Result carries the error while the remaining children are still
// fetched; only a lock timeout or an exhausted children-list fetch fails the
// run as a whole. This is a documented contract of Run and Stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/locking"
	"github.com/wehubfusion/Daedalus/pkg/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the pipeline's retry and locking parameters.
type Config struct {
	// MaxRetries is the number of additional attempts after a failed fetch.
	// A value of 3 means up to 4 attempts in total.
	MaxRetries int

	// LockTimeout bounds how long a run waits for the root lock.
	LockTimeout time.Duration

	// RetryInterval is the initial backoff interval between attempts.
	// Zero means 100ms; tests shrink it.
	RetryInterval time.Duration
}

// Result is the outcome for a single child reference. Index is the child's
// position in the original reference order, which the emitted sequence always
// follows regardless of completion order.
type Result struct {
	Index    int
	Ref      resource.Ref
	Detail   resource.Detail
	Attempts int
	Err      error
}

// FetchError reports an exhausted retry budget for one fetch. It matches
// errors.ErrFetchFailed and unwraps to the last underlying error.
type FetchError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch of %s failed after %d attempts: %v", e.Target, e.Attempts, e.Err)
}

// Unwrap returns the last underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the retry-exhaustion sentinel.
func (e *FetchError) Is(target error) bool {
	return target == sdkerrors.ErrFetchFailed
}

// Pipeline fetches resource graphs. A single Pipeline (with its lock manager
// and limiter) is shared by all concurrent runs; per-run state lives on the
// stack of each Run or Stream call.
type Pipeline struct {
	client  resource.Client
	locks   *locking.Manager
	limiter *concurrency.Limiter
	cfg     Config
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New creates a pipeline. The client, lock manager, and limiter are required;
// the limiter is shared so the in-flight fetch bound holds across runs.
func New(client resource.Client, locks *locking.Manager, limiter *concurrency.Limiter, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if locks == nil {
		return nil, errors.New("lock manager cannot be nil")
	}
	if limiter == nil {
		return nil, errors.New("limiter cannot be nil")
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.New("maxRetries cannot be negative")
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = locking.DefaultTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	return &Pipeline{
		client:  client,
		locks:   locks,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("daedalus/pipeline"),
	}, nil
}

// Run executes an eager fetch of the root's graph: it waits for the full run
// to complete and returns the results ordered by original child index.
// At most one run per rootID is active at any time; a second concurrent call
// either waits for the lock or fails with errors.ErrLockTimeout.
func (p *Pipeline) Run(ctx context.Context, rootID string) ([]Result, error) {
	runID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("root.id", rootID),
			attribute.String("run.id", runID),
		))
	defer span.End()

	start := time.Now()

	if err := p.locks.Acquire(ctx, rootID, p.cfg.LockTimeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock acquisition failed")
		p.logger.Warn("could not acquire root lock",
			zap.String("root_id", rootID),
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, err
	}
	defer p.locks.Release(rootID)

	refs, err := p.FetchChildren(ctx, rootID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "children fetch failed")
		return nil, err
	}

	results := p.fetchAll(ctx, runID, refs)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("children.count", len(refs)),
		attribute.Int("children.failed", failed),
		attribute.Int64("run.duration_ms", time.Since(start).Milliseconds()),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d children failed", failed, len(results)))
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}

	p.logger.Info("run completed",
		zap.String("root_id", rootID),
		zap.String("run_id", runID),
		zap.Int("children", len(refs)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))

	return results, nil
}

// FetchChildren fetches the root's ordered child references, retrying up to
// MaxRetries additional times before failing with a *FetchError.
func (p *Pipeline) FetchChildren(ctx context.Context, rootID string) ([]resource.Ref, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetchChildren",
		trace.WithAttributes(attribute.String("root.id", rootID)))
	defer span.End()

	var refs []resource.Ref
	attempts, err := p.withRetry(ctx, "children of "+rootID, func() error {
		var err error
		refs, err = p.client.GetChildren(ctx, rootID)
		return err
	})
	span.SetAttributes(attribute.Int("fetch.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		return nil, err
	}
	return refs, nil
}

// fetchDetail resolves one child reference with the same retry contract as
// FetchChildren, returning the number of attempts made.
func (p *Pipeline) fetchDetail(ctx context.Context, ref resource.Ref) (resource.Detail, int, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetchDetail",
		trace.WithAttributes(attribute.String("ref", string(ref))))
	defer span.End()

	var detail resource.Detail
	attempts, err := p.withRetry(ctx, string(ref), func() error {
		var err error
		detail, err = p.client.GetDetail(ctx, ref)
		return err
	})
	span.SetAttributes(attribute.Int("fetch.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retries exhausted")
		return resource.Detail{}, attempts, err
	}
	return detail, attempts, nil
}

// withRetry runs op with exponential backoff, at most MaxRetries+1 attempts.
// Retries are local: callers only observe the attempt count and, on
// exhaustion, a *FetchError carrying the last underlying error.
func (p *Pipeline) withRetry(ctx context.Context, target string, op func() error) (int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryInterval

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil {
			p.logger.Warn("fetch attempt failed",
				zap.String("target", target),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", p.cfg.MaxRetries+1),
				zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.cfg.MaxRetries)), ctx))

	if err != nil {
		return attempts, &FetchError{Target: target, Attempts: attempts, Err: err}
	}
	return attempts, nil
}

// fetchAll resolves every reference through the limiter and assembles the
// results by original index. Each fetch runs in its own goroutine but blocks
// on a permit, so at most maxPermits details are in flight at once.
func (p *Pipeline) fetchAll(ctx context.Context, runID string, refs []resource.Ref) []Result {
	results := make([]Result, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref resource.Ref) {
			defer wg.Done()
			results[i] = p.fetchOne(ctx, runID, i, ref)
		}(i, ref)
	}
	wg.Wait()

	return results
}

// fetchOne runs a single detail fetch under a permit.
func (p *Pipeline) fetchOne(ctx context.Context, runID string, index int, ref resource.Ref) Result {
	res := Result{Index: index, Ref: ref}

	err := p.limiter.GoSync(ctx, func() error {
		detail, attempts, err := p.fetchDetail(ctx, ref)
		res.Detail = detail
		res.Attempts = attempts
		res.Err = err
		return err
	})
	// GoSync also fails before fn runs (context cancelled while queued,
	// circuit open); surface that on the result too.
	if err != nil && res.Err == nil {
		res.Err = err
	}

	if res.Err != nil {
		p.logger.Error("child fetch failed",
			zap.String("run_id", runID),
			zap.Int("index", index),
			zap.String("ref", string(ref)),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err))
	}
	return res
}

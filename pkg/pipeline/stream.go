package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Daedalus/pkg/resource"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stream is a lazy, finite, non-restartable sequence of results.
//
// The pipeline prefetches ahead of the consumer: every detail fetch is
// dispatched up front and the limiter bounds how many are in flight, so a
// slow consumer never reduces fetch parallelism below maxPermits and a fast
// one never raises it above. Results are delivered in original child order;
// element i becomes available once children 0..i have completed.
type Stream struct {
	out <-chan Result
}

// Results exposes the ordered result channel. The channel is closed after
// the final element.
func (s *Stream) Results() <-chan Result {
	return s.out
}

// Next pulls the next element. ok is false once the sequence is exhausted.
func (s *Stream) Next() (Result, bool) {
	r, ok := <-s.out
	return r, ok
}

// Stream starts a streaming fetch of the root's graph. The root lock and the
// children fetch happen synchronously, so lock timeouts and children-list
// failures surface here; per-child failures arrive as Result.Err elements.
//
// The lock is released once every dispatched fetch has finished, whether or
// not the consumer drains the stream. Issued fetches are never cancelled
// mid-flight; abandoning the stream (cancelling ctx) only stops delivery.
func (p *Pipeline) Stream(ctx context.Context, rootID string) (*Stream, error) {
	runID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "pipeline.stream",
		trace.WithAttributes(
			attribute.String("root.id", rootID),
			attribute.String("run.id", runID),
		))

	if err := p.locks.Acquire(ctx, rootID, p.cfg.LockTimeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock acquisition failed")
		span.End()
		return nil, err
	}

	refs, err := p.FetchChildren(ctx, rootID)
	if err != nil {
		p.locks.Release(rootID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "children fetch failed")
		span.End()
		return nil, err
	}

	n := len(refs)
	slots := make([]Result, n)
	ready := make([]chan struct{}, n)
	for i := range ready {
		ready[i] = make(chan struct{})
	}
	out := make(chan Result)

	start := time.Now()

	// Dispatch every fetch now; the limiter is the only throttle. The lock
	// is released when the last fetch lands, independent of the consumer.
	// Fetches run on a detached context so abandoning the stream cannot
	// cancel them mid-flight.
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		var wg sync.WaitGroup
		for i, ref := range refs {
			wg.Add(1)
			go func(i int, ref resource.Ref) {
				defer wg.Done()
				slots[i] = p.fetchOne(fetchCtx, runID, i, ref)
				close(ready[i])
			}(i, ref)
		}
		wg.Wait()
		p.locks.Release(rootID)

		span.SetAttributes(
			attribute.Int("children.count", n),
			attribute.Int64("run.duration_ms", time.Since(start).Milliseconds()),
		)
		span.SetStatus(codes.Ok, "stream fetches completed")
		span.End()

		p.logger.Info("stream fetches completed",
			zap.String("root_id", rootID),
			zap.String("run_id", runID),
			zap.Int("children", n),
			zap.Duration("duration", time.Since(start)))
	}()

	// Ordered delivery, paced by the consumer. A cancelled context stops
	// delivery but not the fetches above.
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			select {
			case <-ready[i]:
			case <-ctx.Done():
				return
			}
			select {
			case out <- slots[i]:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Stream{out: out}, nil
}

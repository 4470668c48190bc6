package valr

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/samvad-hq/valr-go/pkg/httpclient"
)

// RetryPolicy bounds the attempts spent on retryable failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 250 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// delay returns the wait before the attempt following attempt (1-based).
// The exponential step keeps its lower half and jitters the upper half; a
// larger server hint wins, and the result never exceeds MaxDelay.
func (p RetryPolicy) delay(attempt int, hint time.Duration) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if half := int64(d / 2); half > 0 {
		d = time.Duration(half + rand.Int63n(half+1))
	}
	if hint > d {
		d = hint
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Dispatcher sends calls, classifies responses and retries transient failures.
type Dispatcher struct {
	builder   *Builder
	transport httpclient.Client
	policy    RetryPolicy
	limiter   *rate.Limiter
	now       func() time.Time
	log       Logger
}

// NewDispatcher wires a dispatcher. limiter may be nil.
func NewDispatcher(builder *Builder, transport httpclient.Client, policy RetryPolicy, limiter *rate.Limiter, log Logger) *Dispatcher {
	return &Dispatcher{
		builder:   builder,
		transport: transport,
		policy:    policy.normalize(),
		limiter:   limiter,
		now:       time.Now,
		log:       ensureLogger(log),
	}
}

// Dispatch performs call, rebuilding and re-signing it on every attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var lastTS int64
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err, attempt-1)
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, cancelled(ctxErrOr(ctx, err), attempt-1)
			}
		}

		ts := d.now()
		if ts.UnixMilli() <= lastTS {
			ts = time.UnixMilli(lastTS + 1)
		}
		req, err := d.builder.Build(call, ts)
		if err != nil {
			return nil, err
		}
		lastTS = req.Timestamp

		resp, callErr := d.exchange(ctx, req)
		if callErr == nil {
			return resp, nil
		}
		callErr.Attempts = attempt
		if callErr.Kind == KindCancelled || !callErr.Retryable() || attempt >= d.policy.MaxAttempts {
			return nil, callErr
		}

		wait := d.policy.delay(attempt, callErr.RetryAfter)
		d.log.WarnObj("valr request retrying", "valr_retry", map[string]any{
			"method":   req.Method,
			"path":     call.Path,
			"kind":     callErr.Kind.String(),
			"status":   callErr.Status,
			"attempt":  attempt,
			"delay_ms": wait.Milliseconds(),
		})
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, cancelled(err, attempt)
		}
	}
}

func (d *Dispatcher) exchange(ctx context.Context, req *SignedRequest) (*Response, *Error) {
	resp, err := d.transport.Do(ctx, httpclient.Request{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cancelled(ctxErr, 0)
		}
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	return classify(resp, d.now())
}

func cancelled(cause error, attempts int) *Error {
	return &Error{Kind: KindCancelled, Err: cause, Attempts: attempts}
}

// ctxErrOr prefers the context's own error over a limiter's wrapped message.
func ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// rate.Limiter reports a deadline it cannot meet before the context expires.
	return context.DeadlineExceeded
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

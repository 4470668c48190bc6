package valr

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/valr-go/pkg/httpclient"
)

type fakeResponse struct {
	status int
	body   string
	header http.Header
}

func (f fakeResponse) Body() []byte    { return []byte(f.body) }
func (f fakeResponse) StatusCode() int { return f.status }
func (f fakeResponse) Header() http.Header {
	if f.header == nil {
		return http.Header{}
	}
	return f.header
}

// fakeTransport replays scripted responses and records every request.
type fakeTransport struct {
	mu        sync.Mutex
	responses []fakeResponse
	errs      []error
	requests  []httpclient.Request
	onCall    func(n int)
}

func (f *fakeTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	resp := f.responses[len(f.responses)-1]
	if n < len(f.responses) {
		resp = f.responses[n]
	}
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(n + 1)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var fastRetry = RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestDispatcher(transport httpclient.Client, policy RetryPolicy) *Dispatcher {
	b := NewBuilder("https://api.valr.com", NewCredentials("key", "secret"), true, "")
	return NewDispatcher(b, transport, policy, nil, nil)
}

func TestDispatchRetriesRateLimitWithFreshSignatures(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: http.StatusTooManyRequests, body: `{"code":-1,"message":"rate limited"}`},
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK, body: `[{"currency":"BTC","available":"0.1"}]`},
	}}
	d := newTestDispatcher(transport, fastRetry)
	// A frozen clock proves timestamps are still advanced between attempts.
	d.now = func() time.Time { return fixedTS }

	resp, err := d.Dispatch(context.Background(), BalancesCall(""))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != http.StatusOK || string(resp.Body) != `[{"currency":"BTC","available":"0.1"}]` {
		t.Fatalf("unexpected response %+v", resp)
	}
	if transport.calls() != 3 {
		t.Fatalf("expected 3 signed requests, got %d", transport.calls())
	}

	seenTS := map[string]bool{}
	seenSig := map[string]bool{}
	for _, req := range transport.requests {
		ts := req.Headers[HeaderTimestamp]
		sig := req.Headers[HeaderSignature]
		if ts == "" || sig == "" {
			t.Fatalf("request not signed: %+v", req.Headers)
		}
		if seenTS[ts] || seenSig[sig] {
			t.Fatalf("timestamp or signature reused across attempts: %s", ts)
		}
		seenTS[ts] = true
		seenSig[sig] = true
	}
}

func TestDispatchAuthenticationFailureIsNotRetried(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: http.StatusUnauthorized, body: `{"code":-11252,"message":"Request has expired: timestamp outside window"}`},
	}}
	d := newTestDispatcher(transport, fastRetry)

	_, err := d.Dispatch(context.Background(), BalancesCall(""))
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if transport.calls() != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", transport.calls())
	}
	var verr *Error
	if !errors.As(err, &verr) || !verr.ClockSkew || verr.Code != -11252 || verr.Attempts != 1 {
		t.Fatalf("unexpected error detail %+v", verr)
	}
}

func TestDispatchServerErrorExhaustsAttempts(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusInternalServerError, body: "boom"}}}
	d := newTestDispatcher(transport, fastRetry)

	_, err := d.Dispatch(context.Background(), OrderbookCall("BTCZAR"))
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if transport.calls() != fastRetry.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", fastRetry.MaxAttempts, transport.calls())
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.Status != http.StatusInternalServerError || verr.Attempts != fastRetry.MaxAttempts {
		t.Fatalf("unexpected error detail %+v", verr)
	}
}

func TestDispatchRateLimitSurfacesRetryAfterOnExhaustion(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "2")
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusTooManyRequests, header: header}}}
	d := newTestDispatcher(transport, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})

	_, err := d.Dispatch(context.Background(), OrderbookCall("BTCZAR"))
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != KindRateLimited {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if verr.RetryAfter != 2*time.Second {
		t.Fatalf("retry after = %v", verr.RetryAfter)
	}
	if transport.calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", transport.calls())
	}
}

func TestDispatchRequestErrorIsNotRetried(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{
		{status: http.StatusBadRequest, body: `{"code":-21,"message":"Invalid currency pair"}`},
	}}
	d := newTestDispatcher(transport, fastRetry)

	_, err := d.Dispatch(context.Background(), OrderbookCall("NOPE"))
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != KindRequest {
		t.Fatalf("expected request error, got %v", err)
	}
	if verr.Message != "Invalid currency pair" || verr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error detail %+v", verr)
	}
	if transport.calls() != 1 {
		t.Fatalf("expected 1 attempt, got %d", transport.calls())
	}
}

func TestDispatchMalformedSuccessIsRequestError(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusOK, body: "<html>oops</html>"}}}
	d := newTestDispatcher(transport, fastRetry)

	_, err := d.Dispatch(context.Background(), OrderbookCall("BTCZAR"))
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
	if transport.calls() != 1 {
		t.Fatalf("malformed success must not be retried, got %d attempts", transport.calls())
	}
}

func TestDispatchEmptySuccessBody(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusAccepted}}}
	d := newTestDispatcher(transport, fastRetry)

	resp, err := d.Dispatch(context.Background(), Call{Verb: "DELETE", Path: "/v1/orders/order", Body: RawBody(`{"orderId":"1"}`), Auth: true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != http.StatusAccepted || resp.Body != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDispatchTransportFailureRetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{
		errs:      []error{errors.New("connection reset by peer")},
		responses: []fakeResponse{{}, {status: http.StatusOK, body: `{"epochTime":1}`}},
	}
	d := newTestDispatcher(transport, fastRetry)

	resp, err := d.Dispatch(context.Background(), ServerTimeCall())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(resp.Body) != `{"epochTime":1}` || transport.calls() != 2 {
		t.Fatalf("unexpected outcome body=%s calls=%d", resp.Body, transport.calls())
	}
}

func TestDispatchTransportFailureExhausts(t *testing.T) {
	dial := errors.New("dial tcp: lookup api.valr.com: no such host")
	transport := &fakeTransport{
		errs:      []error{dial, dial},
		responses: []fakeResponse{{}},
	}
	d := newTestDispatcher(transport, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	_, err := d.Dispatch(context.Background(), ServerTimeCall())
	if !errors.Is(err, ErrTransport) || !errors.Is(err, dial) {
		t.Fatalf("expected transport failure wrapping cause, got %v", err)
	}
}

func TestDispatchCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{
		responses: []fakeResponse{{status: http.StatusServiceUnavailable}},
		onCall:    func(int) { cancel() },
	}
	d := newTestDispatcher(transport, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, OrderbookCall("BTCZAR"))
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancelled error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch did not observe cancellation")
	}
	if transport.calls() != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", transport.calls())
	}
}

func TestDispatchAlreadyCancelledSendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusOK, body: "{}"}}}

	_, err := newTestDispatcher(transport, fastRetry).Dispatch(ctx, OrderbookCall("BTCZAR"))
	if KindOf(err) != KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if transport.calls() != 0 {
		t.Fatalf("expected no requests, got %d", transport.calls())
	}
}

func TestDispatchConfigurationErrorSendsNothing(t *testing.T) {
	transport := &fakeTransport{responses: []fakeResponse{{status: http.StatusOK}}}
	b := NewBuilder("https://api.valr.com", Credentials{}, true, "")
	d := NewDispatcher(b, transport, fastRetry, nil, nil)

	_, err := d.Dispatch(context.Background(), BalancesCall(""))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if transport.calls() != 0 {
		t.Fatalf("expected no requests, got %d", transport.calls())
	}
}

func TestRetryPolicyDelayBounds(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}.normalize()
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.delay(attempt, 0)
		step := p.BaseDelay << (attempt - 1)
		if step > p.MaxDelay {
			step = p.MaxDelay
		}
		if d < step/2 || d > step {
			t.Fatalf("attempt %d delay %v outside [%v, %v]", attempt, d, step/2, step)
		}
	}
	if d := p.delay(1, 700*time.Millisecond); d != 700*time.Millisecond {
		t.Fatalf("retry-after hint not honoured: %v", d)
	}
	if d := p.delay(1, time.Minute); d != p.MaxDelay {
		t.Fatalf("hint not capped: %v", d)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if d := parseRetryAfter("1.5", now); d != 1500*time.Millisecond {
		t.Fatalf("seconds form: %v", d)
	}
	if d := parseRetryAfter(now.Add(3*time.Second).Format(http.TimeFormat), now); d != 3*time.Second {
		t.Fatalf("date form: %v", d)
	}
	if d := parseRetryAfter("soon", now); d != 0 {
		t.Fatalf("garbage form: %v", d)
	}

	for _, v := range []string{"inf", "+Inf", "-inf", "NaN", "-3", "0"} {
		if d := parseRetryAfter(v, now); d != 0 {
			t.Fatalf("parseRetryAfter(%q) = %v, want 0", v, d)
		}
	}
	if d := parseRetryAfter("1e300", now); d != time.Duration(math.MaxInt64) {
		t.Fatalf("huge hint must saturate, got %v", d)
	}
	if d := parseRetryAfter("9223372036.854775807", now); d <= 0 {
		t.Fatalf("hint near the limit must stay positive, got %v", d)
	}
}

func TestRateLimitedHugeRetryAfterStaysBounded(t *testing.T) {
	tr := &fakeTransport{responses: []fakeResponse{
		{status: http.StatusTooManyRequests, header: http.Header{"Retry-After": []string{"1e300"}}, body: `{"message":"slow down"}`},
		{status: http.StatusOK, body: `{}`},
	}}
	d := newTestDispatcher(tr, fastRetry)

	start := time.Now()
	if _, err := d.Dispatch(context.Background(), ServerTimeCall()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("backoff not capped at MaxDelay: %v", elapsed)
	}
}

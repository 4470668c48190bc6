package valr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/samvad-hq/valr-go/pkg/httpclient"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.valr.com"

const defaultTimeout = 10 * time.Second

// Cache stores successful public GET payloads. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte, ttl time.Duration) error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	Retry       RetryPolicy
	// RateLimit caps requests per second; zero disables client-side limiting.
	RateLimit float64
	RateBurst int
	// SignSubaccount appends the subaccount id to the signed payload.
	SignSubaccount bool
	UserAgent      string
	Logger         Logger
	// Transport overrides the default resty transport.
	Transport httpclient.Client
	Cache     Cache
	CacheTTL  time.Duration
}

// Client is a VALR REST client. It is safe for concurrent use.
type Client struct {
	dispatcher *Dispatcher
	resty      *httpclient.RestyClient
	cache      Cache
	cacheTTL   time.Duration
	log        Logger
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, configError("base url %q must be http(s)", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	c := &Client{
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		log:      ensureLogger(opts.Logger),
	}

	transport := opts.Transport
	if transport == nil {
		c.resty = httpclient.NewRestyClient(opts.Timeout)
		transport = c.resty
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	builder := NewBuilder(baseURL, opts.Credentials, opts.SignSubaccount, opts.UserAgent)
	c.dispatcher = NewDispatcher(builder, transport, opts.Retry, limiter, c.log)
	return c, nil
}

// Do dispatches call and returns the raw success payload.
func (c *Client) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	if c == nil || c.dispatcher == nil {
		return nil, configError("client is not initialized")
	}

	key, cacheable := c.cacheKey(call)
	if cacheable {
		if raw, ok, err := c.cache.Get(key); err != nil {
			c.log.WarnObj("valr cache lookup failed", "valr_cache_error", map[string]any{
				"path":  call.Path,
				"error": err.Error(),
			})
		} else if ok {
			return json.RawMessage(raw), nil
		}
	}

	resp, err := c.dispatcher.Dispatch(ctx, call)
	if err != nil {
		return nil, err
	}

	if cacheable && len(resp.Body) > 0 {
		if err := c.cache.Put(key, resp.Body, c.cacheTTL); err != nil {
			c.log.WarnObj("valr cache store failed", "valr_cache_error", map[string]any{
				"path":  call.Path,
				"error": err.Error(),
			})
		}
	}
	return resp.Body, nil
}

// DoJSON dispatches call and decodes the payload into out.
func (c *Client) DoJSON(ctx context.Context, call Call, out any) error {
	raw, err := c.Do(ctx, call)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindRequest, Message: fmt.Sprintf("decode %s response", call.Path), Err: err}
	}
	return nil
}

// Close releases pooled connections owned by the client.
func (c *Client) Close() {
	if c == nil || c.resty == nil {
		return
	}
	c.resty.Close()
}

func (c *Client) cacheKey(call Call) (string, bool) {
	if c.cache == nil || c.cacheTTL <= 0 || call.Auth || call.NoCache {
		return "", false
	}
	verb := strings.ToUpper(strings.TrimSpace(call.Verb))
	if verb != "" && verb != http.MethodGet {
		return "", false
	}
	return http.MethodGet + " " + call.requestPath(), true
}

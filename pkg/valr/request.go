package valr

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names used by authenticated VALR requests.
const (
	HeaderAPIKey       = "X-VALR-API-KEY"
	HeaderSignature    = "X-VALR-SIGNATURE"
	HeaderTimestamp    = "X-VALR-TIMESTAMP"
	HeaderSubaccountID = "X-VALR-SUB-ACCOUNT-ID"
)

// Credentials is an API key/secret pair. The zero value means "no credentials".
type Credentials struct {
	key    string
	secret string
}

// NewCredentials returns credentials for the given key pair. The secret is
// kept byte-for-byte since it is the HMAC key.
func NewCredentials(apiKey, apiSecret string) Credentials {
	return Credentials{key: strings.TrimSpace(apiKey), secret: apiSecret}
}

// Key returns the public API key.
func (c Credentials) Key() string { return c.key }

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool { return c.key == "" || strings.TrimSpace(c.secret) == "" }

// String renders the key and redacts the secret.
func (c Credentials) String() string {
	if c.Empty() {
		return "credentials(none)"
	}
	return "credentials(" + c.key + ", secret=***)"
}

// MarshalJSON keeps the secret out of any serialized form.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// SignedRequest is a fully formed request ready for transmission.
type SignedRequest struct {
	Method string
	URL    string
	// Path is the request path including the query string, as signed.
	Path      string
	Headers   map[string]string
	Body      []byte
	Timestamp int64
}

// Builder turns Calls into SignedRequests.
type Builder struct {
	baseURL        string
	creds          Credentials
	signSubaccount bool
	userAgent      string
}

// NewBuilder returns a Builder for baseURL. signSubaccount controls whether a
// subaccount id is appended to the signed payload.
func NewBuilder(baseURL string, creds Credentials, signSubaccount bool, userAgent string) *Builder {
	return &Builder{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		creds:          creds,
		signSubaccount: signSubaccount,
		userAgent:      userAgent,
	}
}

// Build signs call with timestamp ts.
func (b *Builder) Build(call Call, ts time.Time) (*SignedRequest, error) {
	verb := strings.ToUpper(strings.TrimSpace(call.Verb))
	if verb == "" {
		verb = http.MethodGet
	}
	switch verb {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, configError("unsupported verb %q", call.Verb)
	}
	if !strings.HasPrefix(call.Path, "/") {
		return nil, configError("path %q must start with /", call.Path)
	}
	if call.Auth && b.creds.Empty() {
		return nil, configError("credentials required for %s %s", verb, call.Path)
	}

	body, err := call.encodeBody()
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Err: err}
	}
	if verb == http.MethodGet && body != nil {
		return nil, configError("GET %s must not carry a body", call.Path)
	}

	path := call.requestPath()
	req := &SignedRequest{
		Method:    verb,
		URL:       b.baseURL + path,
		Path:      path,
		Headers:   make(map[string]string, 6),
		Body:      body,
		Timestamp: ts.UnixMilli(),
	}
	if b.userAgent != "" {
		req.Headers["User-Agent"] = b.userAgent
	}
	if len(body) > 0 {
		req.Headers["Content-Type"] = "application/json"
	}
	if !call.Auth {
		return req, nil
	}

	signedSubaccount := ""
	if b.signSubaccount {
		signedSubaccount = call.SubaccountID
	}
	req.Headers[HeaderAPIKey] = b.creds.key
	req.Headers[HeaderTimestamp] = strconv.FormatInt(req.Timestamp, 10)
	req.Headers[HeaderSignature] = Sign(b.creds.secret, req.Timestamp, verb, path, body, signedSubaccount)
	if call.SubaccountID != "" {
		req.Headers[HeaderSubaccountID] = call.SubaccountID
	}
	return req, nil
}

package valr

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/valr-go/pkg/httpclient"
)

const maxMessageBytes = 512

// Response is a successful exchange. Body is the server payload unchanged.
type Response struct {
	Status int
	Body   json.RawMessage
	Header http.Header
}

// apiError is the error envelope VALR returns on failures.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classify maps one HTTP exchange onto a Response or a typed *Error.
func classify(resp httpclient.Response, now time.Time) (*Response, *Error) {
	status := resp.StatusCode()
	body := resp.Body()

	if status >= 200 && status < 300 {
		trimmed := strings.TrimSpace(string(body))
		if trimmed == "" {
			return &Response{Status: status, Header: resp.Header()}, nil
		}
		if !json.Valid(body) {
			return nil, &Error{Kind: KindRequest, Status: status, Message: "malformed response body: " + snippet(body)}
		}
		return &Response{Status: status, Body: json.RawMessage(body), Header: resp.Header()}, nil
	}

	code, msg := errorMessage(body)
	e := &Error{Status: status, Code: code, Message: msg}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuthentication
		e.ClockSkew = mentionsTimestamp(msg)
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header().Get("Retry-After"), now)
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindRequest
	}
	return nil, e
}

func errorMessage(body []byte) (int, string) {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		return ae.Code, ae.Message
	}
	return 0, snippet(body)
}

func mentionsTimestamp(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "timestamp") || strings.Contains(msg, "expired")
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Non-finite or
// non-positive values yield zero; huge values saturate.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			return 0
		}
		// Clamp before converting; float64 -> int64 overflow is undefined.
		if d := secs * float64(time.Second); d < float64(math.MaxInt64) {
			return time.Duration(d)
		}
		return time.Duration(math.MaxInt64)
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	if len(body) > maxMessageBytes {
		body = body[:maxMessageBytes]
	}
	return strings.TrimSpace(string(body))
}

package valr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Call describes one logical API operation before it is signed and sent.
// A Call is immutable from the dispatcher's point of view and is rebuilt
// into a fresh SignedRequest on every attempt.
type Call struct {
	Verb         string
	Path         string
	Query        Query
	Body         any
	Auth         bool
	SubaccountID string
	// NoCache keeps a public GET out of the response cache.
	NoCache bool
}

// RawBody is a pre-serialized request body that is signed and sent unchanged.
type RawBody string

// Query is an ordered set of query parameters. Encoding keeps insertion order.
type Query []QueryParam

// QueryParam is a single key/value pair of a Query.
type QueryParam struct {
	Key   string
	Value string
}

// Add appends a parameter and returns the extended query.
func (q Query) Add(key, value string) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// Get returns the first value stored for key.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Encode renders the query as a URL-encoded string without a leading "?".
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// requestPath joins path and query; the "?" is omitted for an empty query.
func (c Call) requestPath() string {
	qs := c.Query.Encode()
	if qs == "" {
		return c.Path
	}
	return c.Path + "?" + qs
}

// encodeBody serializes the call body once so the same bytes are signed and sent.
func (c Call) encodeBody() ([]byte, error) {
	switch b := c.Body.(type) {
	case nil:
		return nil, nil
	case RawBody:
		return []byte(b), nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		return raw, nil
	}
}

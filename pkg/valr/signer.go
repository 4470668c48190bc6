package valr

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"strconv"
	"strings"
)

// Sign computes the request signature VALR expects in X-VALR-SIGNATURE.
//
// The signed payload is the decimal timestamp, the upper-cased verb, the
// request path exactly as sent (query string included), the body bytes
// and, when non-empty, the subaccount id. The HMAC-SHA512 digest keyed by
// the secret is returned base64 encoded.
func Sign(secret string, timestampMs int64, verb, path string, body []byte, subaccountID string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write([]byte(strings.ToUpper(verb)))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(subaccountID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

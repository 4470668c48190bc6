package valr

import "testing"

const goldenSignature = "R5vjQGkmYc7mzAtHC/emN7UAOxWB7TQqFeB5tNod/Aa3beU5jYilF4f8P8jOGizTl/cLSkMJhZFmZGwc1eVA0g=="

func TestSignGoldenVector(t *testing.T) {
	got := Sign("s3cr3t", 1562577006335, "GET", "/v1/account/balances", nil, "")
	if got != goldenSignature {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", got, goldenSignature)
	}
}

func TestSignUpperCasesVerb(t *testing.T) {
	if got := Sign("s3cr3t", 1562577006335, "get", "/v1/account/balances", nil, ""); got != goldenSignature {
		t.Fatalf("lower-case verb produced %s", got)
	}
}

func TestSignIncludesBodyAndSubaccount(t *testing.T) {
	body := []byte(`{"pair":"BTCZAR","side":"SELL"}`)
	const wantBody = "w3/iEVIQYoFC2qJl3E3gSaKiWnhqIu0+VJp+YvML+uEFp9OSJTNZfy1hvLDqhlO/ZcVpgzm65Q+EOLPr2dJ7kA=="
	if got := Sign("s3cr3t", 1562577006335, "POST", "/v1/orders/limit", body, ""); got != wantBody {
		t.Fatalf("body signature mismatch: %s", got)
	}

	const wantSub = "G6N+WmmdGXiOV77ZMjKfJaizQz9YtKVjxzxm/V0p012b63q04mwJZJr0LjBEoPkFBaomOgji469q9q9dQPCwiQ=="
	if got := Sign("s3cr3t", 1562577006335, "GET", "/v1/account/balances", nil, "sub-1"); got != wantSub {
		t.Fatalf("subaccount signature mismatch: %s", got)
	}
}

func TestSignDeterministicAndSensitive(t *testing.T) {
	base := struct {
		ts   int64
		verb string
		path string
		body []byte
	}{1562577006335, "POST", "/v1/orders/market", []byte(`{"a":1}`)}

	first := Sign("secret", base.ts, base.verb, base.path, base.body, "")
	if again := Sign("secret", base.ts, base.verb, base.path, base.body, ""); again != first {
		t.Fatalf("signature not deterministic: %s vs %s", first, again)
	}

	variants := map[string]string{
		"timestamp": Sign("secret", base.ts+1, base.verb, base.path, base.body, ""),
		"verb":      Sign("secret", base.ts, "PUT", base.path, base.body, ""),
		"path":      Sign("secret", base.ts, base.verb, "/v1/orders/limit", base.body, ""),
		"body":      Sign("secret", base.ts, base.verb, base.path, []byte(`{"a":2}`), ""),
		"secret":    Sign("other", base.ts, base.verb, base.path, base.body, ""),
	}
	for name, sig := range variants {
		if sig == first {
			t.Fatalf("changing %s did not change the signature", name)
		}
	}
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// canonicalString builds the provider's signing base: parameters sorted
// alphabetically by key and joined as key=value pairs with '&'. Outbound
// requests and inbound webhook verification must use the exact same form,
// otherwise signatures never match.
func canonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// sign computes the lowercase hex HMAC-SHA256 of the canonical parameter
// string under the shared secret.
func sign(secret string, params map[string]string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalString(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify checks a signature in constant time.
func verify(secret string, params map[string]string, signature string) bool {
	expected := sign(secret, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

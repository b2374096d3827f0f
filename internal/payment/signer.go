package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Gateway field names that carry the signature itself. They are stripped
// before re-canonicalizing a callback since they were never part of the
// signed payload.
const (
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
)

// Canonicalize produces the exact byte string the gateway signs: empty values
// dropped, keys sorted by raw byte value, values form-encoded (space as '+'),
// pairs joined with '&'. Signature reproducibility depends on this being
// byte-identical on both the outbound and callback paths.
func Canonicalize(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[key]))
	}
	return b.String()
}

// Sign returns the canonical string and its HMAC-SHA512 as lowercase hex.
func Sign(fields map[string]string, secret string) (canonical string, signature string) {
	canonical = Canonicalize(fields)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(canonical))
	return canonical, hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over fields minus the signature fields and
// compares it to the supplied value in constant time.
func Verify(fields map[string]string, secret string, given string) bool {
	if given == "" {
		return false
	}
	stripped := make(map[string]string, len(fields))
	for key, value := range fields {
		if key == FieldSecureHash || key == FieldSecureHashType {
			continue
		}
		stripped[key] = value
	}
	_, expected := Sign(stripped, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(given)))
}

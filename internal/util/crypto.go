package util

import (
	"crypto/subtle"
)

// ConstantTimeEqual compares two secrets without leaking their length of
// agreement through timing.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskCode renders a PIN safe for logs: enough prefix to correlate,
// never the full value.
func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "-****"
}

package wayforpay

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// signDelimiter joins signature fields on the wire. The delimiter and the
// caller-supplied field order are both part of the provider protocol and
// must not change.
const signDelimiter = ";"

// Sign computes the hex HMAC-MD5 digest over the ordered field values,
// keyed with the merchant secret.
func Sign(secret string, fields ...string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, signDelimiter)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest for the ordered fields and compares it to
// signature in constant time.
func Verify(secret, signature string, fields ...string) bool {
	expected := Sign(secret, fields...)
	return hmac.Equal([]byte(expected), []byte(signature))
}

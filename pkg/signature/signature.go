// Package signature signs outbound notification bodies with HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Header carries the hex signature on webhook requests.
const Header = "X-Wallet-Signature"

// TimestampHeader carries the unix time that was signed alongside the body.
const TimestampHeader = "X-Wallet-Timestamp"

// Sign returns the lowercase hex HMAC-SHA256 of "timestamp.body".
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares sig against the expected signature in constant time.
func Verify(secret string, timestamp int64, body []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(sig))
}

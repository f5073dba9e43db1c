package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names of the standard webhook signature triple.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"
)

// signatureTolerance bounds how old (or future-dated) a signed timestamp may
// be before the delivery is rejected as a replay.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the id/timestamp/signature header triple
// against the raw payload. The signature header may carry several
// space-separated "v1,<base64>" entries (key rotation); any valid one passes.
func VerifyWebhookSignature(payload []byte, msgID, timestamp, signatureHeader, secret string) bool {
	msgID = strings.TrimSpace(msgID)
	timestamp = strings.TrimSpace(timestamp)
	signatureHeader = strings.TrimSpace(signatureHeader)
	if msgID == "" || timestamp == "" || signatureHeader == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(signatureHeader) {
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			return true
		}
	}
	return false
}

// decodeSecret accepts both the "whsec_"-prefixed base64 form handed out by
// the billing platform dashboard and a raw base64 secret.
func decodeSecret(secret string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(secret), "whsec_")
	return base64.StdEncoding.DecodeString(trimmed)
}

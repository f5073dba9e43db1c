package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func signPayload(t *testing.T, payload []byte, msgID, timestamp, secret string) string {
	t.Helper()
	key, err := decodeSecret(secret)
	if err != nil {
		t.Fatalf("bad test secret: %v", err)
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event":{"type":"RENEWAL"}}`)
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("top-secret-key"))
	msgID := "msg_2f9a"
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	sig := signPayload(t, payload, msgID, timestamp, secret)

	if !VerifyWebhookSignature(payload, msgID, timestamp, sig, secret) {
		t.Fatalf("expected valid signature to verify")
	}
	if VerifyWebhookSignature([]byte(`{"tampered":true}`), msgID, timestamp, sig, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifyWebhookSignature(payload, "msg_other", timestamp, sig, secret) {
		t.Fatalf("expected mismatched message id to fail")
	}
}

func TestVerifyWebhookSignature_MissingHeaders(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("top-secret-key"))
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	sig := signPayload(t, payload, "msg_1", timestamp, secret)

	if VerifyWebhookSignature(payload, "", timestamp, sig, secret) {
		t.Fatalf("expected missing id to fail")
	}
	if VerifyWebhookSignature(payload, "msg_1", "", sig, secret) {
		t.Fatalf("expected missing timestamp to fail")
	}
	if VerifyWebhookSignature(payload, "msg_1", timestamp, "", secret) {
		t.Fatalf("expected missing signature to fail")
	}
}

func TestVerifyWebhookSignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("top-secret-key"))
	stale := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	sig := signPayload(t, payload, "msg_1", stale, secret)

	if VerifyWebhookSignature(payload, "msg_1", stale, sig, secret) {
		t.Fatalf("expected stale timestamp to fail")
	}
}

func TestVerifyWebhookSignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{"ok":true}`)
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("rotated-key"))
	msgID := "msg_rot"
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	valid := signPayload(t, payload, msgID, timestamp, secret)
	header := "v1,AAAA " + valid

	if !VerifyWebhookSignature(payload, msgID, timestamp, header, secret) {
		t.Fatalf("expected any valid candidate in the header to pass")
	}
}

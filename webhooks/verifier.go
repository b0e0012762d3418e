package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

const (
	HeaderMessageID = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"
)

// SignatureVerifier checks the sender's MAC over the delivery metadata and
// the raw body. The signed content is "<id>.<timestamp>.<body>" keyed with
// the shared secret; the signature header may carry several space-separated
// versioned candidates and any one match accepts.
//
// A missing secret fails closed: every delivery is rejected with a
// configuration error rather than skipping verification.
type SignatureVerifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func NewSignatureVerifier(secret string) SignatureVerifier {
	return SignatureVerifier{
		Secret: strings.TrimSpace(secret),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (v SignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	delivery, err := ExtractDeliveryMetadata(req.Headers)
	if err != nil {
		return err
	}

	key, err := v.signingKey()
	if err != nil {
		return err
	}

	if v.Tolerance > 0 {
		if err := v.checkTimestamp(delivery.Timestamp); err != nil {
			return err
		}
	}

	expected := computeSignature(key, delivery.MessageID, delivery.Timestamp, req.Body)
	for _, candidate := range strings.Fields(delivery.Signature) {
		signature := candidate
		if version, value, found := strings.Cut(candidate, ","); found {
			if version != signatureVersion {
				continue
			}
			signature = value
		}
		decoded, decodeErr := base64.StdEncoding.DecodeString(signature)
		if decodeErr != nil {
			continue
		}
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}
	return webhookVerificationError("webhooks: signature verification failed", map[string]any{
		"message_id": delivery.MessageID,
	})
}

// ExtractDeliveryMetadata pulls the required header triple. All three must
// be present; partial verification is never attempted.
func ExtractDeliveryMetadata(headers map[string]string) (core.DeliveryMetadata, error) {
	delivery := core.DeliveryMetadata{
		MessageID: headerValue(headers, HeaderMessageID),
		Timestamp: headerValue(headers, HeaderTimestamp),
		Signature: headerValue(headers, HeaderSignature),
	}
	missing := make([]string, 0, 3)
	if delivery.MessageID == "" {
		missing = append(missing, HeaderMessageID)
	}
	if delivery.Timestamp == "" {
		missing = append(missing, HeaderTimestamp)
	}
	if delivery.Signature == "" {
		missing = append(missing, HeaderSignature)
	}
	if len(missing) > 0 {
		return core.DeliveryMetadata{}, webhookBadInput(
			"webhooks: missing required delivery headers: "+strings.Join(missing, ", "),
			map[string]any{"missing_headers": missing},
		)
	}
	return delivery, nil
}

func (v SignatureVerifier) signingKey() ([]byte, error) {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return nil, webhookConfigError("webhooks: signing secret is not configured", nil)
	}
	encoded := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Secrets handed over without base64 encoding are used as-is.
		return []byte(encoded), nil
	}
	return key, nil
}

func (v SignatureVerifier) checkTimestamp(raw string) error {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return webhookVerificationError("webhooks: invalid delivery timestamp", nil)
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	delta := now.Sub(time.Unix(seconds, 0).UTC())
	if delta < 0 {
		delta = -delta
	}
	if delta > v.Tolerance {
		return webhookVerificationError("webhooks: delivery timestamp outside tolerance window", nil)
	}
	return nil
}

func computeSignature(key []byte, messageID string, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(messageID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.Verifier = SignatureVerifier{}

package clerk

import (
	"time"

	"github.com/goliatone/go-identity-sync/webhooks"
)

const ProviderID = "clerk"

const DefaultBaseURL = "https://api.clerk.com"

// DefaultTimestampTolerance matches the svix recommendation for replay
// protection on signed deliveries.
const DefaultTimestampTolerance = 5 * time.Minute

// WebhookConfig holds what the inbound surface needs to accept Clerk
// deliveries.
type WebhookConfig struct {
	SigningSecret string
	Tolerance     time.Duration
}

func DefaultWebhookConfig(secret string) WebhookConfig {
	return WebhookConfig{
		SigningSecret: secret,
		Tolerance:     DefaultTimestampTolerance,
	}
}

// NewWebhookTemplate builds the provider template for Clerk: svix signature
// verification plus the svix-id delivery identifier.
func NewWebhookTemplate(config WebhookConfig) webhooks.ProviderWebhookTemplate {
	verifier := webhooks.NewSignatureVerifier(config.SigningSecret)
	verifier.Tolerance = config.Tolerance

	return webhooks.ProviderWebhookTemplate{
		ProviderID: ProviderID,
		Verifier:   verifier,
		Extractor:  webhooks.HeaderDeliveryIDExtractor(webhooks.HeaderMessageID),
	}
}

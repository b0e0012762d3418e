package webhooks

import (
	"strings"

	"github.com/goliatone/go-identity-sync/core"
)

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

// ProviderWebhookTemplate bundles the verifier and delivery-id extractor a
// provider pack contributes for its inbound surface.
type ProviderWebhookTemplate struct {
	ProviderID string
	Verifier   core.Verifier
	Extractor  DeliveryIDExtractor
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", webhookBadInput("webhooks: delivery id header is required", nil)
	}
}

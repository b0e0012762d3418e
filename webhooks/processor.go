package webhooks

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor runs the delivery pipeline: verify the signature over the raw
// body, parse the envelope, then hand the verified event to the
// dispatcher. Each invocation is independent; no state is held across
// deliveries.
//
// Ledger is optional. When nil (the default), redelivered messages are
// processed again in full; the sender owns idempotency. When set,
// duplicate delivery ids short-circuit with an accepted, deduped result.
type Processor struct {
	Verifier    core.Verifier
	Dispatcher  core.Dispatcher
	Ledger      DeliveryLedger
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier core.Verifier, dispatcher core.Dispatcher) *Processor {
	return &Processor{
		Verifier:    verifier,
		Dispatcher:  dispatcher,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.DispatchResult, error) {
	if p == nil || p.Dispatcher == nil {
		return core.DispatchResult{}, webhookInternal("webhooks: processor requires a dispatcher", nil)
	}
	if p.Verifier == nil {
		// Fail closed: a processor without a verifier rejects everything.
		return core.DispatchResult{}, webhookConfigError("webhooks: verifier is not configured", nil)
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return core.DispatchResult{}, webhookBadInput("webhooks: provider id is required", nil)
	}
	req.ProviderID = providerID

	delivery, err := ExtractDeliveryMetadata(req.Headers)
	if err != nil {
		return core.DispatchResult{}, err
	}
	if err := p.Verifier.Verify(ctx, req); err != nil {
		return core.DispatchResult{}, err
	}

	event, err := core.ParseWebhookEvent(req.Body, delivery)
	if err != nil {
		return core.DispatchResult{}, webhookWrapError(
			err,
			goerrors.CategoryBadInput,
			"webhooks: parse event envelope",
			http.StatusBadRequest,
			core.SyncErrorBadInput,
			map[string]any{"provider_id": providerID, "message_id": delivery.MessageID},
		)
	}

	claimID := ""
	attempts := 1
	if p.Ledger != nil {
		record, claimed, claimErr := p.Ledger.Claim(ctx, providerID, delivery.MessageID, req.Body, p.claimLease())
		if claimErr != nil {
			return core.DispatchResult{}, webhookWrapError(
				claimErr,
				goerrors.CategoryOperation,
				"webhooks: delivery claim failed",
				http.StatusInternalServerError,
				core.SyncErrorInternal,
				map[string]any{"provider_id": providerID, "message_id": delivery.MessageID},
			)
		}
		if !claimed {
			return core.DispatchResult{
				Message:    "Duplicate delivery ignored.",
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"provider_id": providerID,
					"delivery_id": delivery.MessageID,
					"status":      record.Status,
					"deduped":     true,
				},
			}, nil
		}
		claimID = record.ClaimID
		attempts = record.Attempts
	}

	result, err := p.Dispatcher.Dispatch(ctx, event)
	if err != nil {
		if p.Ledger != nil && claimID != "" {
			nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(attempts))
			_ = p.Ledger.Fail(ctx, claimID, err, nextAttemptAt, p.maxAttempts())
		}
		return result, err
	}

	if p.Ledger != nil && claimID != "" {
		if completeErr := p.Ledger.Complete(ctx, claimID); completeErr != nil {
			return core.DispatchResult{}, webhookWrapError(
				completeErr,
				goerrors.CategoryOperation,
				"webhooks: complete delivery claim",
				http.StatusInternalServerError,
				core.SyncErrorInternal,
				map[string]any{"provider_id": providerID, "message_id": delivery.MessageID},
			)
		}
	}

	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = providerID
	result.Metadata["delivery_id"] = delivery.MessageID
	return result, nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks processed message ids so redelivered webhooks can
// be suppressed. The processor treats it as optional; without one, no
// deduplication happens.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type ledgerEntry struct {
	record         DeliveryRecord
	leaseExpiresAt time.Time
}

// InMemoryDeliveryLedger is a single-process ledger for tests and hosts
// without persistence. Entries with completed status are evicted once the
// retention lease lapses.
type InMemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryDeliveryLedger() *InMemoryDeliveryLedger {
	return &InMemoryDeliveryLedger{
		entries: map[string]*ledgerEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, webhookInternal("webhooks: delivery ledger is nil", nil)
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, webhookBadInput("webhooks: provider id and delivery id are required", nil)
	}
	now := l.now()
	if lease <= 0 {
		lease = 30 * time.Second
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(providerID, deliveryID)
	entry, exists := l.entries[key]
	if !exists {
		claimID := l.nextClaimID()
		record := DeliveryRecord{
			ID:         claimID,
			ClaimID:    claimID,
			ProviderID: providerID,
			DeliveryID: deliveryID,
			Status:     DeliveryStatusProcessing,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		l.entries[key] = &ledgerEntry{record: record, leaseExpiresAt: now.Add(lease)}
		l.claims[claimID] = key
		return record, true, nil
	}

	switch entry.record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return entry.record, false, nil
	case DeliveryStatusProcessing:
		if now.Before(entry.leaseExpiresAt) {
			return entry.record, false, nil
		}
	case DeliveryStatusRetryReady:
		if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
			return entry.record, false, nil
		}
	}

	if entry.record.ClaimID != "" {
		delete(l.claims, entry.record.ClaimID)
	}
	claimID := l.nextClaimID()
	entry.record.ClaimID = claimID
	entry.record.Status = DeliveryStatusProcessing
	entry.record.Attempts++
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = now.Add(lease)
	l.claims[claimID] = key
	return entry.record, true, nil
}

func (l *InMemoryDeliveryLedger) Get(
	_ context.Context,
	providerID string,
	deliveryID string,
) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, webhookInternal("webhooks: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[ledgerKey(strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))]
	if !exists {
		return DeliveryRecord{}, webhookBadInput(
			fmt.Sprintf("webhooks: delivery not found for provider %q delivery %q", providerID, deliveryID),
			nil,
		)
	}
	return entry.record, nil
}

func (l *InMemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return webhookInternal("webhooks: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return webhookBadInput("webhooks: claim id is required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := l.entries[key]
	if !exists || entry.record.ClaimID != claimID || entry.record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return nil
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return webhookInternal("webhooks: delivery ledger is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return webhookBadInput("webhooks: claim id is required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := l.entries[key]
	if !exists || entry.record.ClaimID != claimID || entry.record.Status != DeliveryStatusProcessing {
		delete(l.claims, claimID)
		return nil
	}
	now := l.now()
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		retryAt := nextAttemptAt.UTC()
		entry.record.Status = DeliveryStatusRetryReady
		entry.record.NextAttemptAt = &retryAt
	}
	entry.record.UpdatedAt = now
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *InMemoryDeliveryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}

func ledgerKey(providerID string, deliveryID string) string {
	return providerID + "::" + deliveryID
}

var _ DeliveryLedger = (*InMemoryDeliveryLedger)(nil)

package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-identity-sync/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the durable delivery ledger. Claims are keyed by
// a per-attempt claim id so a crashed worker's lease can be taken over
// without double-completing.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
	Now  func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, storeBadInput("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, storeFailure(err, "sqlstore: invalid webhook delivery repository wiring")
		}
	}
	return &WebhookDeliveryStore{
		db:   db,
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, storeFailure(nil, "sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, storeBadInput("sqlstore: provider id and delivery id are required")
	}
	now := s.now()
	if lease <= 0 {
		lease = 30 * time.Second
	}
	leaseExpiresAt := now.Add(lease)

	claimID := uuid.NewString()
	record := &webhookDeliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        claimID,
		ProviderID:     providerID,
		DeliveryID:     deliveryID,
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		Payload:        append([]byte(nil), payload...),
		LeaseExpiresAt: &leaseExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.reclaim(ctx, providerID, deliveryID, claimID, now, leaseExpiresAt)
		}
		return webhooks.DeliveryRecord{}, false, storeFailure(err, "sqlstore: insert webhook delivery")
	}
	return deliveryToDomain(record), true, nil
}

// reclaim runs when the (provider_id, delivery_id) row already exists. The
// guarded update takes the row over only when it is actually claimable:
// retry_ready past its next attempt, or processing past its lease.
func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	claimID string,
	now time.Time,
	leaseExpiresAt time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = ?", leaseExpiresAt).
		Set("updated_at = ?", now).
		Where("provider_id = ?", providerID).
		Where("delivery_id = ?", deliveryID).
		Where(
			"(status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (status = ? AND (lease_expires_at IS NULL OR lease_expires_at <= ?))",
			webhooks.DeliveryStatusRetryReady, now,
			webhooks.DeliveryStatusProcessing, now,
		).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, storeFailure(err, "sqlstore: reclaim webhook delivery")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, storeFailure(err, "sqlstore: reclaim rows affected")
	}

	existing, getErr := s.Get(ctx, providerID, deliveryID)
	if getErr != nil {
		return webhooks.DeliveryRecord{}, false, getErr
	}
	return existing, affected > 0, nil
}

func (s *WebhookDeliveryStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, storeFailure(nil, "sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.DeliveryRecord{}, storeBadInput("sqlstore: webhook delivery not found")
		}
		return webhooks.DeliveryRecord{}, storeFailure(err, "sqlstore: select webhook delivery")
	}
	return deliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return storeFailure(nil, "sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return storeBadInput("sqlstore: claim id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "sqlstore: complete webhook delivery")
	}
	return nil
}

func (s *WebhookDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return storeFailure(nil, "sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return storeBadInput("sqlstore: claim id is required")
	}
	now := s.now()
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	if maxAttempts > 0 {
		result, err := s.db.NewUpdate().
			Model((*webhookDeliveryRecord)(nil)).
			Set("status = ?", webhooks.DeliveryStatusDead).
			Set("last_error = ?", lastError).
			Set("next_attempt_at = NULL").
			Set("lease_expires_at = NULL").
			Set("updated_at = ?", now).
			Where("claim_id = ?", claimID).
			Where("status = ?", webhooks.DeliveryStatusProcessing).
			Where("attempts >= ?", maxAttempts).
			Exec(ctx)
		if err != nil {
			return storeFailure(err, "sqlstore: mark webhook delivery dead")
		}
		if affected, err := result.RowsAffected(); err == nil && affected > 0 {
			return nil
		}
	}

	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusRetryReady).
		Set("last_error = ?", lastError).
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return storeFailure(err, "sqlstore: mark webhook delivery for retry")
	}
	return nil
}

// PruneProcessed removes processed and dead deliveries older than the
// cutoff and reports how many rows went away.
func (s *WebhookDeliveryStore) PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, storeFailure(nil, "sqlstore: webhook delivery store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*webhookDeliveryRecord)(nil)).
		Where("status IN (?, ?)", webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead).
		Where("updated_at < ?", olderThan.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, storeFailure(err, "sqlstore: prune webhook deliveries")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storeFailure(err, "sqlstore: prune rows affected")
	}
	return affected, nil
}

func (s *WebhookDeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)

package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:sync_users,alias:su"`

	ID         string    `bun:"id,pk"`
	ExternalID string    `bun:"external_id,notnull"`
	Email      string    `bun:"email"`
	Username   string    `bun:"username"`
	FirstName  string    `bun:"first_name"`
	LastName   string    `bun:"last_name"`
	PhotoURL   string    `bun:"photo_url"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:sync_webhook_deliveries,alias:swd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id"`
	ProviderID     string     `bun:"provider_id,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	Payload        []byte     `bun:"payload"`
	LastError      string     `bun:"last_error"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

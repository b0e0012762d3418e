package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedEnvelope = errors.New("core: malformed event envelope")

type EventKind string

const (
	EventKindUserCreated EventKind = "user.created"
	EventKindUserUpdated EventKind = "user.updated"
	EventKindUserDeleted EventKind = "user.deleted"
	EventKindUnknown     EventKind = "unknown"
)

// ParseEventKind maps the sender's type string to a known kind. Anything
// outside the handled set collapses to EventKindUnknown; the raw string is
// preserved on the event for logging.
func ParseEventKind(raw string) EventKind {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case string(EventKindUserCreated):
		return EventKindUserCreated
	case string(EventKindUserUpdated):
		return EventKindUserUpdated
	case string(EventKindUserDeleted):
		return EventKindUserDeleted
	default:
		return EventKindUnknown
	}
}

func (k EventKind) Valid() bool {
	switch k {
	case EventKindUserCreated, EventKindUserUpdated, EventKindUserDeleted:
		return true
	default:
		return false
	}
}

// WebhookEvent is a payload that already passed signature verification.
// It is only constructed by the verified processing path; Data is the
// untouched data object from the envelope.
type WebhookEvent struct {
	Kind     EventKind
	RawKind  string
	Data     json.RawMessage
	Delivery DeliveryMetadata
}

// ParseWebhookEvent decodes the event envelope from the raw (already
// verified) body.
func ParseWebhookEvent(body []byte, delivery DeliveryMetadata) (WebhookEvent, error) {
	if len(body) == 0 {
		return WebhookEvent{}, fmt.Errorf("%w: empty body", ErrMalformedEnvelope)
	}
	envelope := struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	rawKind := strings.TrimSpace(envelope.Type)
	if rawKind == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing event type", ErrMalformedEnvelope)
	}
	return WebhookEvent{
		Kind:     ParseEventKind(rawKind),
		RawKind:  rawKind,
		Data:     envelope.Data,
		Delivery: delivery,
	}, nil
}

// UserRecord is the normalized store input. Every field is a defined
// string; absent source fields are coerced to "" before the record leaves
// the dispatcher.
type UserRecord struct {
	ExternalID string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	PhotoURL   string    `json:"photo"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EmailAddress is the nested email object inside the provider's user data.
type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// UserEventData is the data object carried by user.created and
// user.updated events. Optional fields arrive as null, so they decode into
// pointers and normalize to empty strings.
type UserEventData struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	Username       *string        `json:"username"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	ImageURL       *string        `json:"image_url"`
}

// Normalize coerces every optional field to a defined string. The email is
// the first entry of the address list when present.
func (d UserEventData) Normalize() UserRecord {
	record := UserRecord{
		ExternalID: strings.TrimSpace(d.ID),
		Username:   stringValue(d.Username),
		FirstName:  stringValue(d.FirstName),
		LastName:   stringValue(d.LastName),
		PhotoURL:   stringValue(d.ImageURL),
	}
	if len(d.EmailAddresses) > 0 {
		record.Email = strings.TrimSpace(d.EmailAddresses[0].EmailAddress)
	}
	return record
}

// DeletedEventData is the data object carried by user.deleted events.
type DeletedEventData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DispatchResult is the per-request outcome: response message, optional
// echoed user, HTTP-style status, and a marker for the best-effort
// post-creation metadata update failing.
type DispatchResult struct {
	Message              string
	User                 *User
	StatusCode           int
	MetadataUpdateFailed bool
	Metadata             map[string]any
}

func stringValue(input *string) string {
	if input == nil {
		return ""
	}
	return strings.TrimSpace(*input)
}

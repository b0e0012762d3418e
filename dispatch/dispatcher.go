package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

const (
	MessageUserCreated    = "User created successfully."
	MessageUserUpdated    = "User updated successfully."
	MessageUserDeleted    = "User deleted successfully."
	MessageUnhandledEvent = "Unhandled event type."
)

// Dispatcher applies one verified event to the user store. Provider is
// optional: when set, a successful creation is followed by a best-effort
// metadata push back to the identity provider so the external profile
// carries the internal user id. A failure there never flips the creation
// into an error response; it is logged and flagged on the result.
type Dispatcher struct {
	Store    core.UserStore
	Provider core.ProviderClient
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Now      func() time.Time
}

func NewDispatcher(store core.UserStore, provider core.ProviderClient) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Provider: provider,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event core.WebhookEvent) (core.DispatchResult, error) {
	if d == nil || d.Store == nil {
		return core.DispatchResult{}, dispatchInternal("dispatch: dispatcher requires a user store", nil)
	}
	startedAt := d.now()

	var result core.DispatchResult
	var err error
	switch event.Kind {
	case core.EventKindUserCreated:
		result, err = d.handleCreated(ctx, event)
	case core.EventKindUserUpdated:
		result, err = d.handleUpdated(ctx, event)
	case core.EventKindUserDeleted:
		result, err = d.handleDeleted(ctx, event)
	default:
		result = core.DispatchResult{
			Message:    MessageUnhandledEvent,
			StatusCode: http.StatusBadRequest,
		}
		err = unhandledEventError(event.RawKind)
	}

	d.observe(ctx, startedAt, string(event.Kind), err, map[string]any{
		"event_type":  event.RawKind,
		"delivery_id": event.Delivery.MessageID,
	})
	return result, err
}

func (d *Dispatcher) handleCreated(ctx context.Context, event core.WebhookEvent) (core.DispatchResult, error) {
	var data core.UserEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return core.DispatchResult{}, dispatchBadInput("dispatch: invalid user.created payload", map[string]any{
			"delivery_id": event.Delivery.MessageID,
		})
	}
	record := data.Normalize()

	user, err := d.Store.CreateUser(ctx, record)
	if err != nil {
		return core.DispatchResult{}, storeFailure(err, "create user", record.ExternalID)
	}

	metadataFailed := false
	if user != nil && d.Provider != nil {
		metadata := core.UserMetadata{InternalUserID: user.ID}
		if metaErr := d.Provider.SetUserMetadata(ctx, record.ExternalID, metadata); metaErr != nil {
			metadataFailed = true
			d.logError(ctx, "provider metadata update failed", map[string]any{
				"external_id": record.ExternalID,
				"user_id":     user.ID,
				"error":       metaErr.Error(),
			})
		}
	}

	return core.DispatchResult{
		Message:              MessageUserCreated,
		User:                 user,
		StatusCode:           http.StatusOK,
		MetadataUpdateFailed: metadataFailed,
	}, nil
}

func (d *Dispatcher) handleUpdated(ctx context.Context, event core.WebhookEvent) (core.DispatchResult, error) {
	var data core.UserEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return core.DispatchResult{}, dispatchBadInput("dispatch: invalid user.updated payload", map[string]any{
			"delivery_id": event.Delivery.MessageID,
		})
	}
	record := data.Normalize()
	// Updates never carry the email forward; the stored address stays
	// whatever creation set it to.
	record.Email = ""

	user, err := d.Store.UpdateUser(ctx, record.ExternalID, record)
	if err != nil {
		return core.DispatchResult{}, storeFailure(err, "update user", record.ExternalID)
	}
	return core.DispatchResult{
		Message:    MessageUserUpdated,
		User:       user,
		StatusCode: http.StatusOK,
	}, nil
}

func (d *Dispatcher) handleDeleted(ctx context.Context, event core.WebhookEvent) (core.DispatchResult, error) {
	var data core.DeletedEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return core.DispatchResult{}, dispatchBadInput("dispatch: invalid user.deleted payload", map[string]any{
			"delivery_id": event.Delivery.MessageID,
		})
	}

	user, err := d.Store.DeleteUser(ctx, data.ID)
	if err != nil {
		return core.DispatchResult{}, storeFailure(err, "delete user", data.ID)
	}
	return core.DispatchResult{
		Message:    MessageUserDeleted,
		User:       user,
		StatusCode: http.StatusOK,
	}, nil
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

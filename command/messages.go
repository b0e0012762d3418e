package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

const (
	TypeProcessDelivery = "identity_sync.command.delivery.process"
	TypeReplayDelivery  = "identity_sync.command.delivery.replay"
	TypePruneDeliveries = "identity_sync.command.delivery.prune"
	TypeSyncUser        = "identity_sync.command.user.sync"
)

type ProcessDeliveryMessage struct {
	Request core.InboundRequest
}

func (ProcessDeliveryMessage) Type() string { return TypeProcessDelivery }

func (m ProcessDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return commandInvalidInputError("command: provider id is required")
	}
	if len(m.Request.Body) == 0 {
		return commandInvalidInputError("command: delivery body is required")
	}
	return nil
}

// ReplayDeliveryMessage re-dispatches a payload that already passed
// signature verification when it was first received.
type ReplayDeliveryMessage struct {
	ProviderID string
	DeliveryID string
	Payload    []byte
}

func (ReplayDeliveryMessage) Type() string { return TypeReplayDelivery }

func (m ReplayDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return commandInvalidInputError("command: provider id is required")
	}
	if strings.TrimSpace(m.DeliveryID) == "" {
		return commandInvalidInputError("command: delivery id is required")
	}
	if len(m.Payload) == 0 {
		return commandInvalidInputError("command: delivery payload is required")
	}
	return nil
}

type PruneDeliveriesMessage struct {
	OlderThan time.Time
}

func (PruneDeliveriesMessage) Type() string { return TypePruneDeliveries }

func (m PruneDeliveriesMessage) Validate() error {
	if m.OlderThan.IsZero() {
		return commandInvalidInputError("command: prune cutoff is required")
	}
	return nil
}

// SyncUserMessage pulls the current provider-side profile for one user and
// reconciles the local record with it.
type SyncUserMessage struct {
	ExternalID string
}

func (SyncUserMessage) Type() string { return TypeSyncUser }

func (m SyncUserMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return commandInvalidInputError("command: external user id is required")
	}
	return nil
}

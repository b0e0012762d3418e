package command

import (
	"context"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

type DeliveryProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.DispatchResult, error)
}

type DeliveryPruner interface {
	PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error)
}

// ProviderReader reads the current provider-side profile. The Clerk client
// satisfies it.
type ProviderReader interface {
	GetUser(ctx context.Context, externalID string) (core.UserRecord, error)
}

type ProcessDeliveryCommand struct {
	processor DeliveryProcessor
}

func NewProcessDeliveryCommand(processor DeliveryProcessor) *ProcessDeliveryCommand {
	return &ProcessDeliveryCommand{processor: processor}
}

func (c *ProcessDeliveryCommand) Execute(ctx context.Context, msg ProcessDeliveryMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: delivery processor is required")
	}
	out, err := c.processor.Process(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReplayDeliveryCommand struct {
	dispatcher core.Dispatcher
}

func NewReplayDeliveryCommand(dispatcher core.Dispatcher) *ReplayDeliveryCommand {
	return &ReplayDeliveryCommand{dispatcher: dispatcher}
}

func (c *ReplayDeliveryCommand) Execute(ctx context.Context, msg ReplayDeliveryMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: replay dispatcher is required")
	}
	event, err := core.ParseWebhookEvent(msg.Payload, core.DeliveryMetadata{
		MessageID: strings.TrimSpace(msg.DeliveryID),
	})
	if err != nil {
		return err
	}
	out, err := c.dispatcher.Dispatch(ctx, event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PruneDeliveriesCommand struct {
	pruner DeliveryPruner
}

func NewPruneDeliveriesCommand(pruner DeliveryPruner) *PruneDeliveriesCommand {
	return &PruneDeliveriesCommand{pruner: pruner}
}

func (c *PruneDeliveriesCommand) Execute(ctx context.Context, msg PruneDeliveriesMessage) error {
	if c == nil || c.pruner == nil {
		return commandDependencyError("command: delivery pruner is required")
	}
	pruned, err := c.pruner.PruneProcessed(ctx, msg.OlderThan)
	if err != nil {
		return err
	}
	storeResult(ctx, pruned)
	return nil
}

type SyncUserCommand struct {
	provider ProviderReader
	store    core.UserStore
}

func NewSyncUserCommand(provider ProviderReader, store core.UserStore) *SyncUserCommand {
	return &SyncUserCommand{provider: provider, store: store}
}

// Execute reconciles one local record against the provider: update when the
// record exists, create when it does not.
func (c *SyncUserCommand) Execute(ctx context.Context, msg SyncUserMessage) error {
	if c == nil || c.provider == nil || c.store == nil {
		return commandDependencyError("command: provider client and user store are required")
	}
	externalID := strings.TrimSpace(msg.ExternalID)
	record, err := c.provider.GetUser(ctx, externalID)
	if err != nil {
		return err
	}

	user, err := c.store.UpdateUser(ctx, externalID, record)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		user, err = c.store.CreateUser(ctx, record)
		if err != nil {
			return err
		}
	}
	storeResult(ctx, user)
	return nil
}

func isNotFound(err error) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.Category == goerrors.CategoryNotFound
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

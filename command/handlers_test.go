package command

import (
	"context"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

type stubDeliveryProcessor struct {
	result core.DispatchResult
	err    error
	last   core.InboundRequest
}

func (p *stubDeliveryProcessor) Process(_ context.Context, req core.InboundRequest) (core.DispatchResult, error) {
	p.last = req
	return p.result, p.err
}

type stubDispatcher struct {
	result core.DispatchResult
	err    error
	events []core.WebhookEvent
}

func (d *stubDispatcher) Dispatch(_ context.Context, event core.WebhookEvent) (core.DispatchResult, error) {
	d.events = append(d.events, event)
	return d.result, d.err
}

type stubPruner struct {
	pruned    int64
	err       error
	olderThan time.Time
}

func (p *stubPruner) PruneProcessed(_ context.Context, olderThan time.Time) (int64, error) {
	p.olderThan = olderThan
	return p.pruned, p.err
}

type stubProviderReader struct {
	record core.UserRecord
	err    error
}

func (r *stubProviderReader) GetUser(context.Context, string) (core.UserRecord, error) {
	return r.record, r.err
}

type stubUserStore struct {
	updateErr error
	createErr error
	user      *core.User
	creates   int
	updates   int
}

func (s *stubUserStore) CreateUser(context.Context, core.UserRecord) (*core.User, error) {
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.user, nil
}

func (s *stubUserStore) UpdateUser(context.Context, string, core.UserRecord) (*core.User, error) {
	s.updates++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.user, nil
}

func (s *stubUserStore) DeleteUser(context.Context, string) (*core.User, error) {
	return s.user, nil
}

func (s *stubUserStore) GetByExternalID(context.Context, string) (*core.User, error) {
	return s.user, nil
}

func TestProcessDeliveryCommand_StoresResult(t *testing.T) {
	processor := &stubDeliveryProcessor{
		result: core.DispatchResult{Message: "User created successfully.", StatusCode: 200},
	}
	cmd := NewProcessDeliveryCommand(processor)

	collector := gocmd.NewResult[core.DispatchResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := ProcessDeliveryMessage{Request: core.InboundRequest{
		ProviderID: "clerk",
		Body:       []byte(`{"type":"user.created","data":{}}`),
	}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute: %v", err)
	}

	result, ok := collector.Load()
	if !ok || result.Message != "User created successfully." {
		t.Fatalf("expected stored result, got %v ok=%v", result, ok)
	}
	if processor.last.ProviderID != "clerk" {
		t.Fatalf("expected forwarded request, got %+v", processor.last)
	}
}

func TestProcessDeliveryCommand_RequiresProcessor(t *testing.T) {
	cmd := NewProcessDeliveryCommand(nil)
	if err := cmd.Execute(context.Background(), ProcessDeliveryMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestReplayDeliveryCommand_DispatchesStoredPayload(t *testing.T) {
	dispatcher := &stubDispatcher{
		result: core.DispatchResult{Message: "User updated successfully.", StatusCode: 200},
	}
	cmd := NewReplayDeliveryCommand(dispatcher)

	collector := gocmd.NewResult[core.DispatchResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := ReplayDeliveryMessage{
		ProviderID: "clerk",
		DeliveryID: "msg_1",
		Payload:    []byte(`{"type":"user.updated","data":{"id":"user_1"}}`),
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(dispatcher.events) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(dispatcher.events))
	}
	if dispatcher.events[0].Kind != core.EventKindUserUpdated {
		t.Fatalf("unexpected event kind %q", dispatcher.events[0].Kind)
	}
	if dispatcher.events[0].Delivery.MessageID != "msg_1" {
		t.Fatalf("expected delivery id carried through, got %+v", dispatcher.events[0].Delivery)
	}
	if _, ok := collector.Load(); !ok {
		t.Fatalf("expected stored result")
	}
}

func TestReplayDeliveryCommand_MalformedPayload(t *testing.T) {
	cmd := NewReplayDeliveryCommand(&stubDispatcher{})
	err := cmd.Execute(context.Background(), ReplayDeliveryMessage{
		ProviderID: "clerk",
		DeliveryID: "msg_1",
		Payload:    []byte(`{"type":`),
	})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPruneDeliveriesCommand_StoresCount(t *testing.T) {
	pruner := &stubPruner{pruned: 42}
	cmd := NewPruneDeliveriesCommand(pruner)

	collector := gocmd.NewResult[int64]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	cutoff := time.Now().Add(-24 * time.Hour)
	if err := cmd.Execute(ctx, PruneDeliveriesMessage{OlderThan: cutoff}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !pruner.olderThan.Equal(cutoff) {
		t.Fatalf("expected cutoff forwarded, got %v", pruner.olderThan)
	}
	count, ok := collector.Load()
	if !ok || count != 42 {
		t.Fatalf("expected stored count 42, got %d ok=%v", count, ok)
	}
}

func TestSyncUserCommand_UpdatesExistingUser(t *testing.T) {
	store := &stubUserStore{user: &core.User{ID: "internal_1", ExternalID: "user_1"}}
	provider := &stubProviderReader{record: core.UserRecord{ExternalID: "user_1", Username: "ada"}}
	cmd := NewSyncUserCommand(provider, store)

	collector := gocmd.NewResult[*core.User]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, SyncUserMessage{ExternalID: "user_1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if store.updates != 1 || store.creates != 0 {
		t.Fatalf("expected update only, got updates=%d creates=%d", store.updates, store.creates)
	}
	user, ok := collector.Load()
	if !ok || user == nil || user.ID != "internal_1" {
		t.Fatalf("expected stored user, got %v ok=%v", user, ok)
	}
}

func TestSyncUserCommand_CreatesMissingUser(t *testing.T) {
	store := &stubUserStore{
		user: &core.User{ID: "internal_2", ExternalID: "user_2"},
		updateErr: goerrors.New("sqlstore: user not found", goerrors.CategoryNotFound).
			WithTextCode(core.SyncErrorUserNotFound),
	}
	provider := &stubProviderReader{record: core.UserRecord{ExternalID: "user_2"}}
	cmd := NewSyncUserCommand(provider, store)

	if err := cmd.Execute(context.Background(), SyncUserMessage{ExternalID: "user_2"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if store.updates != 1 || store.creates != 1 {
		t.Fatalf("expected update then create, got updates=%d creates=%d", store.updates, store.creates)
	}
}

func TestMessageValidation(t *testing.T) {
	if err := (ProcessDeliveryMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty process message to fail")
	}
	if err := (ReplayDeliveryMessage{ProviderID: "clerk"}).Validate(); err == nil {
		t.Fatalf("expected incomplete replay message to fail")
	}
	if err := (PruneDeliveriesMessage{}).Validate(); err == nil {
		t.Fatalf("expected zero cutoff to fail")
	}
	if err := (SyncUserMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty sync message to fail")
	}
}

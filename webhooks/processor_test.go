package webhooks_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/webhooks"
)

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(context.Context, core.InboundRequest) error {
	v.calls++
	return v.err
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

func inboundRequest(deliveryID string, body []byte) core.InboundRequest {
	return core.InboundRequest{
		ProviderID: "clerk",
		Headers: map[string]string{
			"svix-id":        deliveryID,
			"svix-timestamp": strconv.FormatInt(time.Now().Unix(), 10),
			"svix-signature": "v1,c2ln",
		},
		Body: body,
	}
}

func TestProcessor_DispatchesVerifiedEvent(t *testing.T) {
	dispatcher := &stubDispatcher{
		result: core.DispatchResult{Message: "User created successfully.", StatusCode: 200},
	}
	processor := webhooks.NewProcessor(&stubVerifier{}, dispatcher)

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	result, err := processor.Process(context.Background(), inboundRequest("msg_1", body))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Message != "User created successfully." {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(dispatcher.events))
	}
	if dispatcher.events[0].Kind != core.EventKindUserCreated {
		t.Fatalf("unexpected event kind %q", dispatcher.events[0].Kind)
	}
	if result.Metadata["delivery_id"] != "msg_1" {
		t.Fatalf("expected delivery id metadata, got %v", result.Metadata)
	}
}

func TestProcessor_VerificationFailureShortCircuits(t *testing.T) {
	dispatcher := &stubDispatcher{}
	verifier := &stubVerifier{err: goerrors.New("signature mismatch", goerrors.CategoryAuth)}
	processor := webhooks.NewProcessor(verifier, dispatcher)

	_, err := processor.Process(context.Background(), inboundRequest("msg_1", []byte(`{}`)))
	if err == nil {
		t.Fatalf("expected verification error")
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("dispatcher must not run on verification failure")
	}
}

func TestProcessor_MissingVerifierFailsClosed(t *testing.T) {
	processor := webhooks.NewProcessor(nil, &stubDispatcher{})

	_, err := processor.Process(context.Background(), inboundRequest("msg_1", []byte(`{}`)))
	assertTextCode(t, err, core.SyncErrorConfigMissing, 500)
}

func TestProcessor_MalformedEnvelopeIsBadInput(t *testing.T) {
	processor := webhooks.NewProcessor(&stubVerifier{}, &stubDispatcher{})

	_, err := processor.Process(context.Background(), inboundRequest("msg_1", []byte(`{"type":`)))
	assertTextCode(t, err, core.SyncErrorBadInput, 400)
}

func TestProcessor_NoLedgerProcessesRedeliveries(t *testing.T) {
	dispatcher := &stubDispatcher{
		result: core.DispatchResult{Message: "User created successfully.", StatusCode: 200},
	}
	processor := webhooks.NewProcessor(&stubVerifier{}, dispatcher)

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	for i := 0; i < 2; i++ {
		if _, err := processor.Process(context.Background(), inboundRequest("msg_1", body)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(dispatcher.events) != 2 {
		t.Fatalf("expected both redeliveries dispatched, got %d", len(dispatcher.events))
	}
}

func TestProcessor_LedgerDeduplicatesDeliveries(t *testing.T) {
	dispatcher := &stubDispatcher{
		result: core.DispatchResult{Message: "User created successfully.", StatusCode: 200},
	}
	processor := webhooks.NewProcessor(&stubVerifier{}, dispatcher)
	processor.Ledger = webhooks.NewInMemoryDeliveryLedger()

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	if _, err := processor.Process(context.Background(), inboundRequest("msg_1", body)); err != nil {
		t.Fatalf("first process: %v", err)
	}

	result, err := processor.Process(context.Background(), inboundRequest("msg_1", body))
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if result.Message != "Duplicate delivery ignored." {
		t.Fatalf("expected dedupe message, got %q", result.Message)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected deduped metadata, got %v", result.Metadata)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(dispatcher.events))
	}
}

func TestProcessor_FailedDispatchAllowsRetry(t *testing.T) {
	dispatcher := &stubDispatcher{err: goerrors.New("store down", goerrors.CategoryOperation)}
	ledger := webhooks.NewInMemoryDeliveryLedger()

	now := time.Now().UTC()
	ledger.Now = func() time.Time { return now }

	processor := webhooks.NewProcessor(&stubVerifier{}, dispatcher)
	processor.Ledger = ledger
	processor.Now = func() time.Time { return now }

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	if _, err := processor.Process(context.Background(), inboundRequest("msg_1", body)); err == nil {
		t.Fatalf("expected dispatch failure")
	}

	record, err := ledger.Get(context.Background(), "clerk", "msg_1")
	if err != nil {
		t.Fatalf("ledger get: %v", err)
	}
	if record.Status != webhooks.DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %s", record.Status)
	}

	// Redelivery after the backoff window dispatches again.
	dispatcher.err = nil
	dispatcher.result = core.DispatchResult{Message: "User created successfully.", StatusCode: 200}
	now = now.Add(time.Minute)

	result, err := processor.Process(context.Background(), inboundRequest("msg_1", body))
	if err != nil {
		t.Fatalf("retry process: %v", err)
	}
	if result.Message != "User created successfully." {
		t.Fatalf("expected retry to dispatch, got %q", result.Message)
	}
	if len(dispatcher.events) != 2 {
		t.Fatalf("expected two dispatch attempts, got %d", len(dispatcher.events))
	}
}

func TestProcessor_MissingProviderIDIsBadInput(t *testing.T) {
	processor := webhooks.NewProcessor(&stubVerifier{}, &stubDispatcher{})

	req := inboundRequest("msg_1", []byte(`{}`))
	req.ProviderID = " "
	_, err := processor.Process(context.Background(), req)
	assertTextCode(t, err, core.SyncErrorBadInput, 400)
}

func TestExponentialRetryPolicy_DoublesUpToMax(t *testing.T) {
	policy := webhooks.ExponentialRetryPolicy{Initial: time.Second, Max: 10 * time.Second}

	cases := map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
		5: 10 * time.Second,
		9: 10 * time.Second,
	}
	for attempt, want := range cases {
		if got := policy.NextDelay(attempt); got != want {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}

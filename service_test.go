package identitysync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identitysync "github.com/goliatone/go-identity-sync"
	"github.com/goliatone/go-identity-sync/core"
)

type acceptAllVerifier struct {
	calls int
	err   error
}

func (v *acceptAllVerifier) Verify(_ context.Context, _ core.InboundRequest) error {
	v.calls++
	return v.err
}

type recordingUserStore struct {
	created []core.UserRecord
	deleted []string
}

func (s *recordingUserStore) CreateUser(_ context.Context, record core.UserRecord) (*core.User, error) {
	s.created = append(s.created, record)
	return &core.User{ID: "internal_1", ExternalID: record.ExternalID, Email: record.Email}, nil
}

func (s *recordingUserStore) UpdateUser(_ context.Context, externalID string, record core.UserRecord) (*core.User, error) {
	return &core.User{ID: "internal_1", ExternalID: externalID, Username: record.Username}, nil
}

func (s *recordingUserStore) DeleteUser(_ context.Context, externalID string) (*core.User, error) {
	s.deleted = append(s.deleted, externalID)
	return &core.User{ID: "internal_1", ExternalID: externalID}, nil
}

func (s *recordingUserStore) GetByExternalID(_ context.Context, externalID string) (*core.User, error) {
	return &core.User{ID: "internal_1", ExternalID: externalID}, nil
}

type recordingProviderClient struct {
	pushes []core.UserMetadata
}

func (c *recordingProviderClient) SetUserMetadata(_ context.Context, _ string, metadata core.UserMetadata) error {
	c.pushes = append(c.pushes, metadata)
	return nil
}

func deliveryHeaders(messageID string) map[string]string {
	return map[string]string{
		"svix-id":        messageID,
		"svix-timestamp": "1700000000",
		"svix-signature": "v1,Zm9v",
	}
}

func newTestService(t *testing.T, opts ...identitysync.Option) *identitysync.Service {
	t.Helper()
	service, err := identitysync.Setup(identitysync.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return service
}

func TestService_HandleDeliveryCreatesUser(t *testing.T) {
	store := &recordingUserStore{}
	provider := &recordingProviderClient{}
	verifier := &acceptAllVerifier{}
	service := newTestService(t,
		identitysync.WithUserStore(store),
		identitysync.WithProviderClient(provider),
		identitysync.WithVerifier(verifier),
	)

	body := []byte(`{"type":"user.created","data":{"id":"user_1","email_addresses":[{"email_address":"ada@example.com"}],"username":"ada"}}`)
	result, err := service.HandleDelivery(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    deliveryHeaders("msg_1"),
		Body:       body,
	})
	if err != nil {
		t.Fatalf("handle delivery: %v", err)
	}
	if result.User == nil || result.User.ID != "internal_1" {
		t.Fatalf("expected created user in result, got %+v", result)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected one verification, got %d", verifier.calls)
	}
	if len(store.created) != 1 || store.created[0].ExternalID != "user_1" {
		t.Fatalf("unexpected store calls %+v", store.created)
	}
	if len(provider.pushes) != 1 || provider.pushes[0].InternalUserID != "internal_1" {
		t.Fatalf("expected metadata push with internal id, got %+v", provider.pushes)
	}
}

func TestService_HandleDeliveryVerificationFailure(t *testing.T) {
	store := &recordingUserStore{}
	verifier := &acceptAllVerifier{err: goerrors.New(
		"webhooks: signature mismatch",
		goerrors.CategoryAuth,
	).WithTextCode(core.SyncErrorVerificationFailed).WithCode(http.StatusBadRequest)}
	service := newTestService(t,
		identitysync.WithUserStore(store),
		identitysync.WithVerifier(verifier),
	)

	_, err := service.HandleDelivery(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    deliveryHeaders("msg_2"),
		Body:       []byte(`{"type":"user.created","data":{"id":"user_1"}}`),
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.SyncErrorVerificationFailed {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("store must not be touched on verification failure")
	}
}

func TestService_DefaultVerifierFailsClosedWithoutSecret(t *testing.T) {
	service := newTestService(t, identitysync.WithUserStore(&recordingUserStore{}))

	_, err := service.HandleDelivery(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    deliveryHeaders("msg_3"),
		Body:       []byte(`{"type":"user.created","data":{"id":"user_1"}}`),
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.SyncErrorConfigMissing {
		t.Fatalf("expected missing-secret failure, got %v", err)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("missing secret is an operator fault, got status %d", rich.Code)
	}
}

func TestService_HandlerServesDeliveries(t *testing.T) {
	store := &recordingUserStore{}
	service := newTestService(t,
		identitysync.WithUserStore(store),
		identitysync.WithProviderClient(&recordingProviderClient{}),
		identitysync.WithVerifier(&acceptAllVerifier{}),
	)

	server := httptest.NewServer(service.Handler())
	defer server.Close()

	body := `{"type":"user.deleted","data":{"id":"user_9","deleted":true}}`
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range deliveryHeaders("msg_9") {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var envelope struct {
		Message string     `json:"message"`
		User    *core.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.User == nil || envelope.User.ExternalID != "user_9" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "user_9" {
		t.Fatalf("expected delete for user_9, got %+v", store.deleted)
	}
}

func TestService_RuntimeConfigOverridesDefaults(t *testing.T) {
	cfg := identitysync.DefaultConfig()
	cfg.Webhook.ToleranceSeconds = 600
	cfg.Provider.BaseURL = "https://clerk.internal.example.com"
	configured, err := identitysync.NewService(cfg,
		identitysync.WithUserStore(&recordingUserStore{}),
		identitysync.WithVerifier(&acceptAllVerifier{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	resolved := configured.Config()
	if resolved.Webhook.ToleranceSeconds != 600 {
		t.Fatalf("expected runtime tolerance to win, got %d", resolved.Webhook.ToleranceSeconds)
	}
	if resolved.Provider.BaseURL != "https://clerk.internal.example.com" {
		t.Fatalf("expected runtime base url to win, got %q", resolved.Provider.BaseURL)
	}
	if resolved.ServiceName != "identity-sync" {
		t.Fatalf("defaults must fill unset fields, got %q", resolved.ServiceName)
	}
}

type panickingUserStore struct {
	recordingUserStore
}

func (s *panickingUserStore) DeleteUser(_ context.Context, _ string) (*core.User, error) {
	panic("store connection lost")
}

func TestService_HandleDeliveryContainsPanics(t *testing.T) {
	service := newTestService(t,
		identitysync.WithUserStore(&panickingUserStore{}),
		identitysync.WithVerifier(&acceptAllVerifier{}),
	)

	result, err := service.HandleDelivery(context.Background(), core.InboundRequest{
		ProviderID: "clerk",
		Headers:    deliveryHeaders("msg_4"),
		Body:       []byte(`{"type":"user.deleted","data":{"id":"user_1","deleted":true}}`),
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.SyncErrorInternal {
		t.Fatalf("expected internal error from panicking store, got %v", err)
	}
	if !strings.Contains(rich.Message, "store connection lost") {
		t.Fatalf("expected panic value in error message, got %q", rich.Message)
	}
	if result.User != nil || result.Message != "" {
		t.Fatalf("expected zero result after panic, got %+v", result)
	}
}

func TestService_NilServiceRejectsDeliveries(t *testing.T) {
	var service *identitysync.Service
	_, err := service.HandleDelivery(context.Background(), core.InboundRequest{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.SyncErrorInternal {
		t.Fatalf("expected internal error from nil service, got %v", err)
	}
}

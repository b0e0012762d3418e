package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// InboundRequest carries one webhook delivery exactly as it arrived: the
// raw body bytes plus flattened headers. Body must stay byte-identical to
// what the sender signed; re-serializing it invalidates verification.
type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// DeliveryMetadata is the out-of-band header triple the sender attaches to
// every delivery. All three fields are required before verification runs.
type DeliveryMetadata struct {
	MessageID string
	Timestamp string
	Signature string
}

type Verifier interface {
	Verify(ctx context.Context, req InboundRequest) error
}

// Dispatcher routes a verified event to exactly one store mutation and
// shapes the response.
type Dispatcher interface {
	Dispatch(ctx context.Context, event WebhookEvent) (DispatchResult, error)
}

// UserStore is the internal persistence surface. Mutations validate the
// external id themselves: an empty id is a bad-input failure, distinct
// from not-found.
type UserStore interface {
	CreateUser(ctx context.Context, record UserRecord) (*User, error)
	UpdateUser(ctx context.Context, externalID string, record UserRecord) (*User, error)
	DeleteUser(ctx context.Context, externalID string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
}

// UserMetadata is pushed back to the identity provider after a successful
// creation so the provider-side profile carries the internal user id.
type UserMetadata struct {
	InternalUserID string `json:"userId"`
}

type ProviderClient interface {
	SetUserMetadata(ctx context.Context, externalID string, metadata UserMetadata) error
}

type StoreProvider interface {
	UserStore() UserStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

package identitysync

import "github.com/goliatone/go-identity-sync/core"

type Config = core.Config

type WebhookConfig = core.WebhookConfig

type ProviderConfig = core.ProviderConfig

type User = core.User
type UserRecord = core.UserRecord
type UserMetadata = core.UserMetadata

type InboundRequest = core.InboundRequest
type DispatchResult = core.DispatchResult
type WebhookEvent = core.WebhookEvent
type DeliveryMetadata = core.DeliveryMetadata

type UserStore = core.UserStore
type ProviderClient = core.ProviderClient
type Verifier = core.Verifier
type Dispatcher = core.Dispatcher
type MetricsRecorder = core.MetricsRecorder
type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver

func DefaultConfig() Config {
	return core.DefaultConfig()
}

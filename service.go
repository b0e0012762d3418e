package identitysync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/dispatch"
	"github.com/goliatone/go-identity-sync/providers/clerk"
	"github.com/goliatone/go-identity-sync/transport"
	"github.com/goliatone/go-identity-sync/webhooks"
)

const loggerName = "identity-sync"

// Service is the composed sync pipeline: signature verification, event
// dispatch, and the user store behind them.
type Service struct {
	config     core.Config
	logger     core.Logger
	metrics    core.MetricsRecorder
	userStore  core.UserStore
	provider   core.ProviderClient
	verifier   core.Verifier
	ledger     webhooks.DeliveryLedger
	dispatcher core.Dispatcher
	processor  *webhooks.Processor
}

type serviceBuilder struct {
	runtimeConfig     core.Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	persistenceClient any
	repositoryFactory any
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	userStore         core.UserStore
	providerClient    core.ProviderClient
	verifier          core.Verifier
	ledger            webhooks.DeliveryLedger
	dispatcher        core.Dispatcher
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithUserStore(store core.UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = store
	}
}

func WithProviderClient(client core.ProviderClient) Option {
	return func(b *serviceBuilder) {
		b.providerClient = client
	}
}

func WithVerifier(verifier core.Verifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithDeliveryLedger(ledger webhooks.DeliveryLedger) Option {
	return func(b *serviceBuilder) {
		b.ledger = ledger
	}
}

func WithDispatcher(dispatcher core.Dispatcher) Option {
	return func(b *serviceBuilder) {
		b.dispatcher = dispatcher
	}
}

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{runtimeConfig: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(loggerName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(loggerName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, core.MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, core.MapError(err)
	}

	if builder.userStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(core.RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, core.MapError(buildErr)
			}
			if storeProvider != nil {
				builder.userStore = storeProvider.UserStore()
			}
		}
	}

	if builder.providerClient == nil && finalConfig.Provider.APIKey != "" {
		builder.providerClient = clerk.NewClient(
			finalConfig.Provider.APIKey,
			clerk.WithBaseURL(finalConfig.Provider.BaseURL),
			clerk.WithLogger(logger),
		)
	}

	// Without a verifier override the Clerk template owns verification;
	// an empty secret then fails closed on the first delivery instead of
	// at startup.
	if builder.verifier == nil {
		template := clerk.NewWebhookTemplate(clerk.WebhookConfig{
			SigningSecret: finalConfig.Webhook.Secret,
			Tolerance:     time.Duration(finalConfig.Webhook.ToleranceSeconds) * time.Second,
		})
		builder.verifier = template.Verifier
	}

	dispatcher := builder.dispatcher
	if dispatcher == nil {
		d := dispatch.NewDispatcher(builder.userStore, builder.providerClient)
		d.Logger = logger
		d.Metrics = builder.metricsRecorder
		dispatcher = d
	}

	processor := webhooks.NewProcessor(builder.verifier, dispatcher)
	processor.Ledger = builder.ledger

	return &Service{
		config:     finalConfig,
		logger:     logger,
		metrics:    builder.metricsRecorder,
		userStore:  builder.userStore,
		provider:   builder.providerClient,
		verifier:   builder.verifier,
		ledger:     builder.ledger,
		dispatcher: dispatcher,
		processor:  processor,
	}, nil
}

// Setup is the convenience entry point used by hosts that want the whole
// pipeline with defaults.
func Setup(cfg core.Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// HandleDelivery runs one inbound delivery through verification and
// dispatch. A panicking collaborator is contained here so one delivery
// never takes down a non-HTTP host; the caller sees an internal error.
func (s *Service) HandleDelivery(ctx context.Context, req core.InboundRequest) (result core.DispatchResult, err error) {
	if s == nil || s.processor == nil {
		return core.DispatchResult{}, goerrors.New(
			"identitysync: service is not configured",
			goerrors.CategoryInternal,
		).WithTextCode(core.SyncErrorInternal)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			if s.logger != nil {
				s.logger.Error("delivery processing panicked", "panic", recovered)
			}
			result = core.DispatchResult{}
			err = goerrors.New(
				fmt.Sprintf("identitysync: delivery processing panicked: %v", recovered),
				goerrors.CategoryInternal,
			).WithTextCode(core.SyncErrorInternal)
		}
	}()
	return s.processor.Process(ctx, req)
}

// Process satisfies the transport and command processor contracts.
func (s *Service) Process(ctx context.Context, req core.InboundRequest) (core.DispatchResult, error) {
	return s.HandleDelivery(ctx, req)
}

// Handler returns the inbound HTTP endpoint for webhook deliveries.
func (s *Service) Handler() http.Handler {
	handler := transport.NewWebhookHandler(s, clerk.ProviderID)
	if s != nil {
		handler.Logger = s.logger
	}
	return handler
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) UserStore() core.UserStore {
	if s == nil {
		return nil
	}
	return s.userStore
}

func (s *Service) Dispatcher() core.Dispatcher {
	if s == nil {
		return nil
	}
	return s.dispatcher
}

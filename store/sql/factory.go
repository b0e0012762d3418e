package sqlstore

import (
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds all SQL-backed stores off a shared bun handle.
type RepositoryFactory struct {
	db *bun.DB

	userStore     *UserStore
	deliveryStore *WebhookDeliveryStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, storeFailure(nil, "sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.userStore != nil && f.deliveryStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil || f.userStore == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) DeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore

	deliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, storeBadInput("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, storeFailure(nil, "sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, storeBadInput("sqlstore: unsupported persistence client type")
	}
}

var (
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)

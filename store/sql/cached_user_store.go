package sqlstore

import (
	"context"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-identity-sync/core"
)

const userCacheKeyPrefix = "identity-sync::user::v1"

// CachedUserStore layers a read-through cache over external-id lookups.
// Mutations write through to the base store and drop the cached entry so
// the next read observes the new state.
type CachedUserStore struct {
	base  core.UserStore
	cache repositorycache.CacheService
}

func NewCachedUserStore(base core.UserStore, cacheService repositorycache.CacheService) (*CachedUserStore, error) {
	if base == nil {
		return nil, storeBadInput("sqlstore: base user store is required")
	}
	if cacheService == nil {
		return nil, storeBadInput("sqlstore: user cache service is required")
	}
	return &CachedUserStore{base: base, cache: cacheService}, nil
}

// UserCacheKey is the deterministic cache key contract for external-id
// reads: identity-sync::user::v1::<external_id> with the id URL-path
// escaped.
func UserCacheKey(externalID string) (string, error) {
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return "", storeBadInput("sqlstore: external user id is required")
	}
	return userCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedUserStore) GetByExternalID(ctx context.Context, externalID string) (*core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, storeFailure(nil, "sqlstore: cached user store is not configured")
	}
	cacheKey, err := UserCacheKey(externalID)
	if err != nil {
		return nil, err
	}

	user, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.User, error) {
		fetched, fetchErr := s.base.GetByExternalID(ctx, externalID)
		if fetchErr != nil {
			return core.User{}, fetchErr
		}
		return *fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *CachedUserStore) CreateUser(ctx context.Context, record core.UserRecord) (*core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, storeFailure(nil, "sqlstore: cached user store is not configured")
	}
	user, err := s.base.CreateUser(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, record.ExternalID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CachedUserStore) UpdateUser(ctx context.Context, externalID string, record core.UserRecord) (*core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, storeFailure(nil, "sqlstore: cached user store is not configured")
	}
	user, err := s.base.UpdateUser(ctx, externalID, record)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, externalID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CachedUserStore) DeleteUser(ctx context.Context, externalID string) (*core.User, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, storeFailure(nil, "sqlstore: cached user store is not configured")
	}
	user, err := s.base.DeleteUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, externalID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CachedUserStore) invalidate(ctx context.Context, externalID string) error {
	cacheKey, err := UserCacheKey(externalID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return storeFailure(err, "sqlstore: invalidate cached user")
	}
	return nil
}

var _ core.UserStore = (*CachedUserStore)(nil)

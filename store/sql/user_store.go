package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-identity-sync/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStore persists synced user profiles keyed by the provider-side
// external id. The external id carries a unique constraint so concurrent
// creations for the same delivery collapse into a conflict error.
type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, storeBadInput("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, storeFailure(err, "sqlstore: invalid user repository wiring")
		}
	}
	return &UserStore{db: db, repo: repo}, nil
}

func (s *UserStore) CreateUser(ctx context.Context, record core.UserRecord) (*core.User, error) {
	if s == nil || s.db == nil {
		return nil, storeFailure(nil, "sqlstore: user store is not configured")
	}
	externalID := strings.TrimSpace(record.ExternalID)
	if externalID == "" {
		return nil, storeBadInput("sqlstore: external user id is required")
	}

	now := time.Now().UTC()
	row := &userRecord{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Email:      record.Email,
		Username:   record.Username,
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		PhotoURL:   record.PhotoURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, storeConflict(externalID)
		}
		return nil, storeFailure(err, "sqlstore: insert user")
	}
	return userToDomain(row), nil
}

func (s *UserStore) UpdateUser(ctx context.Context, externalID string, record core.UserRecord) (*core.User, error) {
	if s == nil || s.db == nil {
		return nil, storeFailure(nil, "sqlstore: user store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, storeBadInput("sqlstore: external user id is required")
	}

	// Email is deliberately left alone: profile updates from the provider
	// never carry a verified address.
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*userRecord)(nil)).
		Set("username = ?", record.Username).
		Set("first_name = ?", record.FirstName).
		Set("last_name = ?", record.LastName).
		Set("photo_url = ?", record.PhotoURL).
		Set("updated_at = ?", now).
		Where("external_id = ?", externalID).
		Exec(ctx)
	if err != nil {
		return nil, storeFailure(err, "sqlstore: update user")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, storeFailure(err, "sqlstore: update user rows affected")
	}
	if affected == 0 {
		return nil, storeNotFound(externalID)
	}
	return s.GetByExternalID(ctx, externalID)
}

func (s *UserStore) DeleteUser(ctx context.Context, externalID string) (*core.User, error) {
	if s == nil || s.db == nil {
		return nil, storeFailure(nil, "sqlstore: user store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, storeBadInput("sqlstore: external user id is required")
	}

	user, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.NewDelete().
		Model((*userRecord)(nil)).
		Where("external_id = ?", externalID).
		Exec(ctx); err != nil {
		return nil, storeFailure(err, "sqlstore: delete user")
	}
	return user, nil
}

func (s *UserStore) GetByExternalID(ctx context.Context, externalID string) (*core.User, error) {
	if s == nil || s.db == nil {
		return nil, storeFailure(nil, "sqlstore: user store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, storeBadInput("sqlstore: external user id is required")
	}

	row := &userRecord{}
	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeNotFound(externalID)
		}
		return nil, storeFailure(err, "sqlstore: select user")
	}
	return userToDomain(row), nil
}

func userToDomain(record *userRecord) *core.User {
	if record == nil {
		return nil
	}
	return &core.User{
		ID:         record.ID,
		ExternalID: record.ExternalID,
		Email:      record.Email,
		Username:   record.Username,
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		PhotoURL:   record.PhotoURL,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

var _ core.UserStore = (*UserStore)(nil)

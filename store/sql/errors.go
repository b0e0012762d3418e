package sqlstore

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

func storeBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(core.SyncErrorBadInput)
}

func storeNotFound(externalID string) error {
	return goerrors.New("sqlstore: user not found", goerrors.CategoryNotFound).
		WithTextCode(core.SyncErrorUserNotFound).
		WithMetadata(map[string]any{"external_id": externalID})
}

func storeConflict(externalID string) error {
	return goerrors.New("sqlstore: user already exists", goerrors.CategoryConflict).
		WithTextCode(core.SyncErrorUserConflict).
		WithMetadata(map[string]any{"external_id": externalID})
}

func storeFailure(source error, message string) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryOperation).
			WithTextCode(core.SyncErrorStoreFailed)
	}
	return goerrors.Wrap(source, goerrors.CategoryOperation, message).
		WithTextCode(core.SyncErrorStoreFailed)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

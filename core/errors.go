package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput           = "SYNC_BAD_INPUT"
	SyncErrorVerificationFailed = "SYNC_VERIFICATION_FAILED"
	SyncErrorUnhandledEvent     = "SYNC_UNHANDLED_EVENT"
	SyncErrorUserNotFound       = "SYNC_USER_NOT_FOUND"
	SyncErrorUserConflict       = "SYNC_USER_CONFLICT"
	SyncErrorStoreFailed        = "SYNC_STORE_FAILED"
	SyncErrorProviderFailed     = "SYNC_PROVIDER_FAILED"
	SyncErrorConfigMissing      = "SYNC_CONFIG_MISSING"
	SyncErrorInternal           = "SYNC_INTERNAL_ERROR"
)

// MapError normalizes any error into the sync error envelope: category,
// HTTP-style code, and text code are always populated.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature") || strings.Contains(msg, "verification"):
		return newSyncError(err.Error(), goerrors.CategoryAuth, SyncErrorVerificationFailed)
	case strings.Contains(msg, "not found"):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorUserNotFound)
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists"):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorUserConflict)
	case strings.Contains(msg, "required"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "missing"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorUserNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorVerificationFailed
	case goerrors.CategoryConflict:
		return SyncErrorUserConflict
	case goerrors.CategoryOperation:
		return SyncErrorStoreFailed
	case goerrors.CategoryExternal:
		return SyncErrorProviderFailed
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

package dispatch

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

func dispatchError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func dispatchWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return dispatchError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func dispatchBadInput(message string, metadata map[string]any) error {
	return dispatchError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.SyncErrorBadInput,
		metadata,
	)
}

func dispatchInternal(message string, metadata map[string]any) error {
	return dispatchError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.SyncErrorInternal,
		metadata,
	)
}

func unhandledEventError(rawKind string) error {
	return dispatchError(
		"dispatch: unhandled event type",
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.SyncErrorUnhandledEvent,
		map[string]any{"event_type": rawKind},
	)
}

func storeFailure(source error, operation string, externalID string) error {
	return dispatchWrapError(
		source,
		goerrors.CategoryOperation,
		"dispatch: "+operation+" failed",
		http.StatusInternalServerError,
		core.SyncErrorStoreFailed,
		map[string]any{"external_id": externalID},
	)
}

package webhooks

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

func webhookError(
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

func webhookWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return webhookError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func webhookBadInput(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.SyncErrorBadInput,
		metadata,
	)
}

// webhookVerificationError reports a signature mismatch. The sender sees a
// client error, not 401, so redelivery loops do not treat it as an auth
// challenge.
func webhookVerificationError(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryAuth,
		http.StatusBadRequest,
		core.SyncErrorVerificationFailed,
		metadata,
	)
}

func webhookConfigError(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.SyncErrorConfigMissing,
		metadata,
	)
}

func webhookInternal(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.SyncErrorInternal,
		metadata,
	)
}

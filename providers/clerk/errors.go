package clerk

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity-sync/core"
)

func providerError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(core.SyncErrorProviderFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func providerWrapError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return providerError(message, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithTextCode(core.SyncErrorProviderFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func providerBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(core.SyncErrorBadInput)
}

func providerNotFound(externalID string) error {
	return goerrors.New("clerk: user not found", goerrors.CategoryNotFound).
		WithTextCode(core.SyncErrorUserNotFound).
		WithMetadata(map[string]any{"external_id": externalID})
}

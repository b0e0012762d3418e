package clerk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-identity-sync/core"
	"github.com/goliatone/go-identity-sync/transport"
)

const maxErrorBodySnippet = 512

// Client talks to the Clerk management API. It covers the two calls the
// sync pipeline needs: reading a user profile and patching the public
// metadata after a local record is created.
type Client struct {
	adapter *transport.RESTAdapter
	baseURL string
	apiKey  string
	logger  core.Logger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithHTTPClient(doer transport.HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.adapter = transport.NewRESTAdapter(doer)
		}
	}
}

func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(apiKey string, options ...ClientOption) *Client {
	client := &Client{
		adapter: transport.NewRESTAdapter(nil),
		baseURL: DefaultBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client
}

var _ core.ProviderClient = (*Client)(nil)

// SetUserMetadata patches the provider-side profile so it carries the
// internal user id in its public metadata.
func (c *Client) SetUserMetadata(ctx context.Context, externalID string, metadata core.UserMetadata) error {
	if err := c.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(externalID) == "" {
		return providerBadInput("clerk: external user id is required")
	}

	payload, err := json.Marshal(map[string]any{
		"public_metadata": metadata,
	})
	if err != nil {
		return providerWrapError(err, "clerk: encode metadata payload", nil)
	}

	resp, err := c.adapter.Do(ctx, transport.Request{
		Method:  http.MethodPatch,
		URL:     c.endpoint("/v1/users/%s/metadata", externalID),
		Headers: c.headers(),
		Body:    payload,
	})
	if err != nil {
		return providerWrapError(err, "clerk: metadata update request failed", map[string]any{
			"external_id": externalID,
		})
	}
	return c.checkStatus(resp, externalID)
}

// GetUser fetches the provider-side profile and normalizes it into the
// record shape the local store uses.
func (c *Client) GetUser(ctx context.Context, externalID string) (core.UserRecord, error) {
	if err := c.ready(); err != nil {
		return core.UserRecord{}, err
	}
	if strings.TrimSpace(externalID) == "" {
		return core.UserRecord{}, providerBadInput("clerk: external user id is required")
	}

	resp, err := c.adapter.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     c.endpoint("/v1/users/%s", externalID),
		Headers: c.headers(),
	})
	if err != nil {
		return core.UserRecord{}, providerWrapError(err, "clerk: user lookup request failed", map[string]any{
			"external_id": externalID,
		})
	}
	if err := c.checkStatus(resp, externalID); err != nil {
		return core.UserRecord{}, err
	}

	var data core.UserEventData
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return core.UserRecord{}, providerWrapError(err, "clerk: decode user payload", map[string]any{
			"external_id": externalID,
		})
	}
	return data.Normalize(), nil
}

func (c *Client) ready() error {
	if c == nil || c.adapter == nil {
		return providerError("clerk: client is not configured", nil)
	}
	if c.apiKey == "" {
		return providerError("clerk: api key is required", nil)
	}
	return nil
}

func (c *Client) endpoint(format string, externalID string) string {
	return c.baseURL + fmt.Sprintf(format, url.PathEscape(externalID))
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}
}

func (c *Client) checkStatus(resp transport.Response, externalID string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return providerNotFound(externalID)
	default:
		return providerError(
			fmt.Sprintf("clerk: api responded with status %d", resp.StatusCode),
			map[string]any{
				"status_code": resp.StatusCode,
				"external_id": externalID,
				"body":        truncateBody(resp.Body),
			},
		)
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodySnippet {
		body = body[:maxErrorBodySnippet]
	}
	return string(body)
}

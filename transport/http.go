package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity-sync/core"
)

const defaultMaxRequestBodyBytes int64 = 1 << 20 // 1 MiB

type DeliveryProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.DispatchResult, error)
}

type successEnvelope struct {
	Message string     `json:"message"`
	User    *core.User `json:"user"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

// WebhookHandler is the single inbound endpoint. It preserves the raw body
// bytes for verification, flattens headers, and maps every outcome to the
// response taxonomy: 200 on success, 400 for header/verification/unhandled
// failures, 500 for configuration, store, and unexpected failures.
type WebhookHandler struct {
	Processor    DeliveryProcessor
	ProviderID   string
	Logger       core.Logger
	MaxBodyBytes int64
}

func NewWebhookHandler(processor DeliveryProcessor, providerID string) *WebhookHandler {
	return &WebhookHandler{
		Processor:    processor,
		ProviderID:   strings.TrimSpace(providerID),
		MaxBodyBytes: defaultMaxRequestBodyBytes,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The outermost boundary: one malformed delivery must never take the
	// process down.
	defer func() {
		if recovered := recover(); recovered != nil {
			h.logError(r.Context(), "webhook handler panic", map[string]any{
				"panic": fmt.Sprint(recovered),
			})
			writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "Internal server error."})
		}
	}()

	if h == nil || h.Processor == nil {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "Internal server error."})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Error: "Method not allowed."})
		return
	}

	maxBytes := h.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "Unable to read request body."})
		return
	}
	if int64(len(body)) > maxBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: "Request body too large."})
		return
	}

	providerID := h.ProviderID
	if providerID == "" {
		providerID = "clerk"
	}
	req := core.InboundRequest{
		ProviderID: providerID,
		Headers:    flattenRequestHeaders(r.Header),
		Body:       body,
	}

	result, err := h.Processor.Process(r.Context(), req)
	if err != nil {
		h.writeFailure(w, r, result, err)
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, successEnvelope{Message: result.Message, User: result.User})
}

func (h *WebhookHandler) writeFailure(
	w http.ResponseWriter,
	r *http.Request,
	result core.DispatchResult,
	err error,
) {
	mapped := core.MapError(err)
	status := http.StatusInternalServerError
	if mapped != nil && mapped.Code != 0 {
		status = mapped.Code
	}

	h.logError(r.Context(), "webhook delivery rejected", map[string]any{
		"status": status,
		"error":  err.Error(),
	})

	if strings.TrimSpace(result.Message) != "" {
		writeJSON(w, status, messageEnvelope{Message: result.Message})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: publicErrorMessage(mapped)})
}

// publicErrorMessage keeps failure responses generic: no signature or
// secret material, no store internals. Missing-header failures are the one
// case that names what was missing.
func publicErrorMessage(mapped *goerrors.Error) string {
	if mapped == nil {
		return "Internal server error."
	}
	switch mapped.TextCode {
	case core.SyncErrorBadInput:
		if missing, ok := mapped.Metadata["missing_headers"].([]string); ok && len(missing) > 0 {
			return "Missing required delivery headers: " + strings.Join(missing, ", ") + "."
		}
		return "Invalid request."
	case core.SyncErrorVerificationFailed:
		return "Webhook verification failed."
	case core.SyncErrorUnhandledEvent:
		return "Unhandled event type."
	default:
		return "Internal server error."
	}
}

func (h *WebhookHandler) logError(ctx context.Context, message string, fields map[string]any) {
	if h == nil || h.Logger == nil {
		return
	}
	logger := h.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Error(message, args...)
}

func flattenRequestHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		flat[strings.ToLower(key)] = values[0]
	}
	return flat
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package dispatch

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-identity-sync/core"
)

func (d *Dispatcher) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if d == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	d.recordCounter(ctx, "identity_sync."+operation+".total", 1, tags)
	d.recordHistogram(ctx, "identity_sync."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		d.logError(ctx, operation+" failed", contextFields)
		return
	}
	d.logInfo(ctx, operation+" succeeded", contextFields)
}

func (d *Dispatcher) logInfo(ctx context.Context, message string, fields map[string]any) {
	d.logWithLevel(ctx, "info", message, fields)
}

func (d *Dispatcher) logError(ctx context.Context, message string, fields map[string]any) {
	d.logWithLevel(ctx, "error", message, fields)
}

func (d *Dispatcher) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (d *Dispatcher) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if d == nil || d.Metrics == nil {
		return
	}
	d.Metrics.IncCounter(ctx, strings.TrimSpace(name), value, tags)
}

func (d *Dispatcher) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if d == nil || d.Metrics == nil {
		return
	}
	d.Metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, tags)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	operation = strings.ReplaceAll(operation, ".", "_")
	return operation
}

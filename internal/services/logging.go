package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyClientIP  contextKey = "client_ip"
	ContextKeyUserAgent contextKey = "user_agent"
)

// ServiceLogger writes one structured line per service operation plus audit
// lines for item edits and skip notices for score batches.
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// outcome maps an operation error to a log level and a status label.
// Caller mistakes are warnings; only unexpected failures are errors.
func outcome(err error) (slog.Level, string) {
	switch {
	case err == nil:
		return slog.LevelInfo, "success"
	case IsValidation(err):
		return slog.LevelWarn, "validation_error"
	case IsBusinessRule(err):
		return slog.LevelWarn, "rule_violation"
	case IsLocked(err):
		return slog.LevelWarn, "locked"
	case IsUnauthorized(err):
		return slog.LevelWarn, "unauthorized"
	case IsNotFound(err):
		return slog.LevelInfo, "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return slog.LevelWarn, "canceled"
	default:
		return slog.LevelError, "error"
	}
}

// errorAttrs adds the details of the typed gradebook errors.
func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String("error", err.Error())}

	var validationErrs ValidationErrors
	var ruleErr *BusinessRuleError
	var permErr *PermissionError
	var lockedErr *LockedError
	var storeErr *StorageError
	switch {
	case errors.As(err, &validationErrs):
		fields := validationErrs.Fields()
		if len(fields) > 5 {
			fields = fields[:5]
		}
		attrs = append(attrs,
			slog.Int("validation_errors_count", len(validationErrs)),
			slog.String("fields", strings.Join(fields, ",")))
	case errors.As(err, &ruleErr):
		attrs = append(attrs, slog.String("business_rule", ruleErr.Rule))
		for key, value := range ruleErr.Context {
			attrs = append(attrs, slog.Any("rule_"+key, value))
		}
	case errors.As(err, &permErr):
		attrs = append(attrs,
			slog.String("permission_action", permErr.Action),
			slog.String("permission_reason", permErr.Reason))
	case errors.As(err, &lockedErr):
		attrs = append(attrs,
			slog.Uint64("student_id", uint64(lockedErr.Key.StudentID)),
			slog.Uint64("section_id", uint64(lockedErr.Key.SectionID)),
			slog.Uint64("subject_id", uint64(lockedErr.Key.SubjectID)))
	case errors.As(err, &storeErr):
		attrs = append(attrs, slog.String("storage_op", storeErr.Op))
	}
	return attrs
}

func requestAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	return attrs
}

func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, userID string, resourceID uint, resourceType string, duration time.Duration, err error) {
	level, status := outcome(err)

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Uint64("resource_id", uint64(resourceID)),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	attrs = append(attrs, requestAttrs(ctx)...)

	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
	}

	if level == slog.LevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs,
					slog.String("caller_func", fn.Name()),
					slog.String("caller_file", file),
					slog.Int("caller_line", line),
				)
			}
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s %s", operation, status), attrs...)
}

// LogSkipped records a student dropped from a score batch
func (l *ServiceLogger) LogSkipped(ctx context.Context, operation string, userID string, studentRef string, reason string) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("student_ref", studentRef),
		slog.String("reason", reason),
	}
	l.logger.LogAttrs(ctx, slog.LevelWarn, "Student skipped", append(attrs, requestAttrs(ctx)...)...)
}

type AuditEventType string

const (
	AuditEventCreate AuditEventType = "create"
	AuditEventUpdate AuditEventType = "update"
	AuditEventDelete AuditEventType = "delete"
)

// AuditEvent is a before/after snapshot of an edited resource
type AuditEvent struct {
	Type         AuditEventType `json:"type"`
	UserID       string         `json:"user_id"`
	ResourceID   uint           `json:"resource_id"`
	ResourceType string         `json:"resource_type"`
	Action       string         `json:"action"`
	OldValue     interface{}    `json:"old_value,omitempty"`
	NewValue     interface{}    `json:"new_value,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

func (l *ServiceLogger) LogAuditEvent(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", string(event.Type)),
		slog.String("user_id", event.UserID),
		slog.Uint64("resource_id", uint64(event.ResourceID)),
		slog.String("resource_type", event.ResourceType),
		slog.String("action", event.Action),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.OldValue != nil {
		attrs = append(attrs, slog.Any("old_value", event.OldValue))
	}
	if event.NewValue != nil {
		attrs = append(attrs, slog.Any("new_value", event.NewValue))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, fmt.Sprintf("Audit: %s %s", event.Action, event.ResourceType), attrs...)
}

// ContextualLogger times one operation and logs its result
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	userID    string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation string, userID string) *ContextualLogger {
	if l.config.EnableDebug {
		l.logger.LogAttrs(ctx, slog.LevelDebug, operation+" started",
			append([]slog.Attr{slog.String("user_id", userID)}, requestAttrs(ctx)...)...)
	}
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID uint, resourceType string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.userID, resourceID, resourceType, time.Since(cl.startTime), err)
}

func (cl *ContextualLogger) LogAudit(eventType AuditEventType, resourceID uint, resourceType string, oldValue, newValue interface{}) {
	event := AuditEvent{
		Type:         eventType,
		UserID:       cl.userID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Action:       cl.operation,
		OldValue:     oldValue,
		NewValue:     newValue,
		Timestamp:    time.Now(),
	}
	if ip, ok := cl.ctx.Value(ContextKeyClientIP).(string); ok {
		event.IPAddress = ip
	}
	if ua, ok := cl.ctx.Value(ContextKeyUserAgent).(string); ok {
		event.UserAgent = ua
	}

	cl.logger.LogAuditEvent(cl.ctx, event)
}

var sensitiveKeys = []string{"password", "token", "secret", "auth", "credential"}

// SanitizeForLogging redacts values under credential-like keys in
// free-form client payloads such as gradingConfig.
func SanitizeForLogging(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, inner := range v {
			if isSensitiveKey(k) {
				result[k] = "[REDACTED]"
				continue
			}
			result[k] = SanitizeForLogging(inner)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, inner := range v {
			result[i] = SanitizeForLogging(inner)
		}
		return result
	default:
		return data
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

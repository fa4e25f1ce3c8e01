package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		level  slog.Level
		status string
	}{
		{"success", nil, slog.LevelInfo, "success"},
		{"validation", ValidationErrors{*NewValidationError("name", "is required", nil)}, slog.LevelWarn, "validation_error"},
		{"rule", NewBusinessRuleError("min_one_item", "cannot remove the last grade item", nil), slog.LevelWarn, "rule_violation"},
		{"locked", NewLockedError(models.GradeRecordKey{StudentID: 1}, "locked"), slog.LevelWarn, "locked"},
		{"permission", NewPermissionError("7", 1, "grade_item", "update", "not owner"), slog.LevelWarn, "unauthorized"},
		{"not found", fmt.Errorf("lookup: %w", ErrGradeItemNotFound), slog.LevelInfo, "not_found"},
		{"canceled", context.Canceled, slog.LevelWarn, "canceled"},
		{"storage", &StorageError{Op: "upsert_scores", Err: errors.New("connection reset")}, slog.LevelError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, status := outcome(tt.err)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestLogResultIncludesErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)), LogConfig{Service: "gradebook", Component: "test"})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	op := logger.WithOperation(ctx, "upsert_scores", "7")
	op.LogResult(0, "grade_record", ValidationErrors{}.Add("grades[0].writtenWork[1]", "must not be negative", -1))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "fields=grades[0].writtenWork[1]")
}

func TestSanitizeForLogging(t *testing.T) {
	in := map[string]interface{}{
		"writtenWork": 30,
		"apiToken":    "abc",
		"nested":      []interface{}{map[string]interface{}{"clientSecret": "x", "weight": 0.5}},
	}

	out := SanitizeForLogging(in).(map[string]interface{})
	assert.Equal(t, 30, out["writtenWork"])
	assert.Equal(t, "[REDACTED]", out["apiToken"])

	nested := out["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["clientSecret"])
	assert.Equal(t, 0.5, nested["weight"])
}

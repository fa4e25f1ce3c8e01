package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/gradebook-service/internal/errors"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")

	// Gradebook specific errors
	ErrGradeItemNotFound   = errors.New("grade item not found")
	ErrCategoryNotFound    = errors.New("grade category not found")
	ErrPeriodNotFound      = errors.New("grading period not found")
	ErrGradeRecordNotFound = errors.New("grade record not found")
	ErrStudentNotFound     = errors.New("student not found")

	ErrRecordLocked = errors.New("grade record is verified and locked")
)

// Business rules
const (
	RuleMinItemsPerCategory = "min_items_per_category"
	RuleGradeItemsChanged   = "grade_items_changed"
)

// Skip reasons reported by UpsertScores
const (
	SkipReasonStudentNotFound = "student_not_found"
	SkipReasonLocked          = "locked"
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// LockedError is returned when a write targets a verified grade record.
type LockedError struct {
	Key     models.GradeRecordKey `json:"key"`
	Message string                `json:"message"`
}

func (le *LockedError) Error() string {
	return le.Message
}

func (le *LockedError) Unwrap() error {
	return ErrRecordLocked
}

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (se *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", se.Op, se.Err)
}

func (se *StorageError) Unwrap() error {
	return se.Err
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func NewLockedError(key models.GradeRecordKey, message string) *LockedError {
	return &LockedError{Key: key, Message: message}
}

// storageErr wraps err unless it is already a domain error that must pass
// through a transaction unchanged.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsBusinessRule(err) || IsLocked(err) || IsUnauthorized(err) || IsNotFound(err) || IsStorage(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGradeItemNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrGradeRecordNotFound) ||
		errors.Is(err, ErrStudentNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsLocked checks if error is a write against a verified record
func IsLocked(err error) bool {
	return errors.Is(err, ErrRecordLocked)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

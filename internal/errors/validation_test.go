package errors

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestValidationError(t *testing.T) {
	// Test NewValidationError
	err := NewValidationError("max_score", "must be greater than 0", -5.0)

	if err.Field != "max_score" {
		t.Errorf("Expected field to be 'max_score', got '%s'", err.Field)
	}

	if err.Message != "must be greater than 0" {
		t.Errorf("Expected message to be 'must be greater than 0', got '%s'", err.Message)
	}

	if err.Value != -5.0 {
		t.Errorf("Expected value to be -5, got '%v'", err.Value)
	}

	expected := "validation error on field 'max_score': must be greater than 0"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("name", "is required", nil))
	expected := "validation failed: name is required"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("category_code", "must be a valid grade category", "XX"))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("section_id", "is required", "required", 0)

	if err.Rule != "required" {
		t.Errorf("Expected rule to be 'required', got '%s'", err.Rule)
	}

	if err.Field != "section_id" {
		t.Errorf("Expected field to be 'section_id', got '%s'", err.Field)
	}
}

type scoreRequest struct {
	StudentRef string   `validate:"required"`
	Score      *float64 `validate:"omitempty,gte=0,lte=1000"`
}

func TestToValidationErrors(t *testing.T) {
	over := 1200.0
	err := validator.New().Struct(scoreRequest{Score: &over})
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}

	errs := ToValidationErrors(err)
	if len(errs) != 2 {
		t.Fatalf("Expected 2 validation errors, got %d", len(errs))
	}

	byRule := map[string]ValidationError{}
	for _, e := range errs {
		byRule[e.Rule] = e
	}

	if byRule["required"].Message != "is required" {
		t.Errorf("Expected 'is required', got '%s'", byRule["required"].Message)
	}
	if byRule["lte"].Message != "must be less than or equal to 1000" {
		t.Errorf("Expected lte message, got '%s'", byRule["lte"].Message)
	}
}

func TestToValidationErrorsIgnoresOtherErrors(t *testing.T) {
	if errs := ToValidationErrors(NewValidationError("f", "m", nil)); len(errs) != 0 {
		t.Errorf("Expected no converted errors, got %d", len(errs))
	}
}

type gradeEntry struct {
	StudentID string `json:"studentId" validate:"required"`
}

type gradesBatch struct {
	Grades []gradeEntry `json:"grades" validate:"required,dive"`
}

func TestToValidationErrorsKeepsNestedPath(t *testing.T) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	err := v.Struct(gradesBatch{Grades: []gradeEntry{{StudentID: "2025-001"}, {}}})
	errs := ToValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 validation error, got %d", len(errs))
	}
	if errs[0].Field != "grades[1].studentId" {
		t.Errorf("Expected field 'grades[1].studentId', got '%s'", errs[0].Field)
	}
}

func TestValidationErrorsAddAndOrNil(t *testing.T) {
	var errs ValidationErrors
	if errs.OrNil() != nil {
		t.Error("Expected nil error for empty collection")
	}

	errs = errs.Add("grades[0].writtenWork[1]", "must not be negative", -1.0)
	errs = errs.Add("grades[0].quarterlyAssessment", "has 2 scores but only 1 active items", 2)

	if got := errs.Fields(); len(got) != 2 || got[0] != "grades[0].writtenWork[1]" {
		t.Errorf("Unexpected fields %v", got)
	}
	if errs.OrNil() == nil {
		t.Error("Expected non-nil error")
	}
}

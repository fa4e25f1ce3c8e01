package validator

import (
	"math"
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/gradebook-service/internal/errors"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the gradebook's custom tags
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("category_code", validateCategoryCode)
	validate.RegisterValidation("grade_action", validateGradeAction)
	validate.RegisterValidation("max_score", validateMaxScore)
	validate.RegisterValidation("item_name", validateItemName)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateCategoryCode(fl validator.FieldLevel) bool {
	return models.CategoryCode(fl.Field().String()).IsValid()
}

func validateGradeAction(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "add", "remove":
		return true
	}
	return false
}

// validateMaxScore accepts finite values in (0, 1000].
func validateMaxScore(fl validator.FieldLevel) bool {
	return IsValidMaxScore(fl.Field().Float())
}

func validateItemName(fl validator.FieldLevel) bool {
	return IsValidItemName(fl.Field().String())
}

func IsValidMaxScore(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v > 0 && v <= models.MaxAllowedScore
}

func IsValidItemName(name string) bool {
	n := len([]rune(strings.TrimSpace(name)))
	return n >= 1 && n <= 100
}

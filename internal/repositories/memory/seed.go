package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/gradebook-service/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Fixture holds the reference rows the gradebook reads but never writes:
// grading periods and student accounts.
type Fixture struct {
	Periods  []FixturePeriod  `json:"periods" validate:"dive"`
	Students []FixtureStudent `json:"students" validate:"dive"`
}

type FixturePeriod struct {
	SchoolYear string `json:"schoolYear" validate:"required"`
	Name       string `json:"name" validate:"required"`
}

type FixtureStudent struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
	FullName      string `json:"fullName" validate:"required"`
}

// SeedResult lists the ids assigned to the fixture rows, in fixture order.
type SeedResult struct {
	PeriodIDs  []uint
	StudentIDs []uint
}

// LoadFixture reads a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &fixture, nil
}

// Seed inserts the fixture's periods and students. Nothing is inserted when
// a row is incomplete or an account number repeats.
func (s *Store) Seed(fixture *Fixture) (*SeedResult, error) {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	if err := validate.Struct(fixture); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return nil, errs
		}
		return nil, err
	}

	s.mutex.Lock()
	seen := make(map[string]bool, len(s.db.accounts)+len(fixture.Students))
	for _, account := range s.db.accounts {
		seen[account.AccountNumber] = true
	}
	s.mutex.Unlock()

	var errs apperrors.ValidationErrors
	for i, student := range fixture.Students {
		if seen[student.AccountNumber] {
			errs = errs.Add(fmt.Sprintf("students[%d].accountNumber", i), "is already taken", student.AccountNumber)
		}
		seen[student.AccountNumber] = true
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	result := &SeedResult{}
	for _, period := range fixture.Periods {
		result.PeriodIDs = append(result.PeriodIDs, s.AddPeriod(period.SchoolYear, period.Name))
	}
	for _, student := range fixture.Students {
		result.StudentIDs = append(result.StudentIDs, s.AddStudent(student.AccountNumber, student.FullName))
	}
	return result, nil
}

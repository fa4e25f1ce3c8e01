package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/SAP-F-2025/gradebook-service/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFromFixtureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"periods": [{"schoolYear": "2025-2026", "name": "First Quarter"}],
		"students": [
			{"accountNumber": "2025-0001", "fullName": "Ana Cruz"},
			{"accountNumber": "2025-0002", "fullName": "Ben Reyes"}
		]
	}`), 0o600))

	fixture, err := LoadFixture(path)
	require.NoError(t, err)

	store := NewStore()
	seeded, err := store.Seed(fixture)
	require.NoError(t, err)
	require.Len(t, seeded.PeriodIDs, 1)
	require.Len(t, seeded.StudentIDs, 2)

	ctx := context.Background()
	repo := NewRepository(store)

	period, err := repo.Period().GetByID(ctx, seeded.PeriodIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", period.SchoolYear)

	studentID, err := repo.Student().ResolveAccountNumber(ctx, "2025-0002")
	require.NoError(t, err)
	assert.Equal(t, seeded.StudentIDs[1], studentID)
}

func TestSeedRejectsBadFixtures(t *testing.T) {
	t.Run("MissingField", func(t *testing.T) {
		store := NewStore()
		_, err := store.Seed(&Fixture{Periods: []FixturePeriod{{SchoolYear: "2025-2026"}}})

		var errs apperrors.ValidationErrors
		require.ErrorAs(t, err, &errs)
		assert.Equal(t, []string{"periods[0].name"}, errs.Fields())
	})

	t.Run("DuplicateAccountNumber", func(t *testing.T) {
		store := NewStore()
		store.AddStudent("2025-0001", "Ana Cruz")

		_, err := store.Seed(&Fixture{
			Periods:  []FixturePeriod{{SchoolYear: "2025-2026", Name: "First Quarter"}},
			Students: []FixtureStudent{{AccountNumber: "2025-0001", FullName: "Someone Else"}},
		})
		var errs apperrors.ValidationErrors
		require.ErrorAs(t, err, &errs)

		_, err = NewRepository(store).Period().GetByID(context.Background(), 1)
		assert.Error(t, err, "nothing is inserted when the fixture is rejected")
	})

	t.Run("UnreadableFile", func(t *testing.T) {
		_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})
}

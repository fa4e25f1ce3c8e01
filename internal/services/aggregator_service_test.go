package services

import (
	"testing"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGrade(t *testing.T) {
	weights := map[models.CategoryCode]float64{
		models.CategoryWrittenWork:         0.3,
		models.CategoryPerformanceTask:     0.5,
		models.CategoryQuarterlyAssessment: 0.2,
	}
	items := []*models.GradeItem{
		{ID: 1, CategoryCode: models.CategoryWrittenWork},
		{ID: 2, CategoryCode: models.CategoryWrittenWork},
		{ID: 3, CategoryCode: models.CategoryWrittenWork},
		{ID: 4, CategoryCode: models.CategoryPerformanceTask},
		{ID: 5, CategoryCode: models.CategoryQuarterlyAssessment},
	}
	score := func(itemID uint, v float64) *models.StudentScore {
		return &models.StudentScore{GradeItemID: itemID, Score: v}
	}

	t.Run("AllCategories", func(t *testing.T) {
		got := ComputeGrade(items, []*models.StudentScore{
			score(1, 70), score(2, 80), score(3, 90), score(4, 90), score(5, 75),
		}, weights)
		assert.Equal(t, 80.0, got.Averages[models.CategoryWrittenWork])
		assert.Equal(t, 90.0, got.Averages[models.CategoryPerformanceTask])
		assert.Equal(t, 75.0, got.Averages[models.CategoryQuarterlyAssessment])
		assert.InDelta(t, 24+45+15, got.FinalGrade, 1e-9)
	})

	t.Run("EmptyCategoryCountsAsZero", func(t *testing.T) {
		got := ComputeGrade(items, []*models.StudentScore{score(1, 70), score(3, 90)}, weights)
		assert.Equal(t, 80.0, got.Averages[models.CategoryWrittenWork])
		assert.Equal(t, 0.0, got.Averages[models.CategoryPerformanceTask])
		assert.Equal(t, 0.0, got.Averages[models.CategoryQuarterlyAssessment])
		assert.InDelta(t, 24.0, got.FinalGrade, 1e-9)
	})

	t.Run("ScoresOutsideItemsIgnored", func(t *testing.T) {
		got := ComputeGrade(items[:1], []*models.StudentScore{score(1, 60), score(99, 100)}, weights)
		assert.Equal(t, 60.0, got.Averages[models.CategoryWrittenWork])
	})

	t.Run("NoScores", func(t *testing.T) {
		got := ComputeGrade(items, nil, weights)
		assert.Equal(t, 0.0, got.FinalGrade)
		assert.Len(t, got.Averages, len(models.CategoryCodes))
	})

	t.Run("NoRounding", func(t *testing.T) {
		got := ComputeGrade(items, []*models.StudentScore{score(1, 70), score(2, 75), score(3, 76)}, weights)
		assert.InDelta(t, 221.0/3.0, got.Averages[models.CategoryWrittenWork], 1e-12)
	})
}

func TestAggregatorService_Recompute(t *testing.T) {
	env := newTestEnv(t)
	studentID := env.store.AddStudent("2025-0001", "Ana Cruz")
	env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)
	env.addItem(t, asTeacherA, models.CategoryPerformanceTask, nil)

	_, err := env.saveGrades(asTeacherA, StudentGradeEntry{
		StudentAccountRef: "2025-0001",
		WrittenWork:       scores(90),
		PerformanceTasks:  scores(70),
	})
	require.NoError(t, err)

	t.Run("Idempotent", func(t *testing.T) {
		first, err := env.services.Aggregator.Recompute(env.ctx, studentID, testSectionID, testSubjectID, env.periodID)
		require.NoError(t, err)
		second, err := env.services.Aggregator.Recompute(env.ctx, studentID, testSectionID, testSubjectID, env.periodID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.FinalGrade, second.FinalGrade)
		assert.InDelta(t, 27+35, second.FinalGrade, 1e-9)

		records, err := env.services.Aggregator.ListRecords(env.ctx, env.scope())
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("StudentWithoutScoresGetsZero", func(t *testing.T) {
		other := env.store.AddStudent("2025-0002", "Ben Reyes")
		record, err := env.services.Aggregator.Recompute(env.ctx, other, testSectionID, testSubjectID, env.periodID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, record.FinalGrade)
		assert.Equal(t, "2025-2026", record.SchoolYear)
	})

	t.Run("VerifiedRecordIsReturnedAsStored", func(t *testing.T) {
		_, err := env.services.Verification.Verify(env.ctx, env.verificationRequest(studentID), asAdviser)
		require.NoError(t, err)
		before := env.record(t, studentID)

		record, err := env.services.Aggregator.Recompute(env.ctx, studentID, testSectionID, testSubjectID, env.periodID)
		require.NoError(t, err)
		assert.True(t, record.Verified)
		assert.Equal(t, before.ComputedAt, record.ComputedAt)
	})

	t.Run("UnknownPeriod", func(t *testing.T) {
		_, err := env.services.Aggregator.Recompute(env.ctx, studentID, testSectionID, testSubjectID, 9999)
		assert.ErrorIs(t, err, ErrPeriodNotFound)
	})
}

func TestAggregatorService_GetRecordMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.services.Aggregator.GetRecord(env.ctx, models.GradeRecordKey{
		StudentID: 1, SectionID: testSectionID, SubjectID: testSubjectID, SchoolYear: "2025-2026", PeriodID: env.periodID,
	})
	assert.ErrorIs(t, err, ErrGradeRecordNotFound)
}

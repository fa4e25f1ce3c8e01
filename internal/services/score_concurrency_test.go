package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories/memory"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interleavingItemRepo runs afterList once, right after the first
// non-transactional item listing returns.
type interleavingItemRepo struct {
	repositories.GradeItemRepository
	afterList func()
}

func (r *interleavingItemRepo) ListActive(ctx context.Context, filters repositories.GradeItemFilters) ([]*models.GradeItem, error) {
	items, err := r.GradeItemRepository.ListActive(ctx, filters)
	if hook := r.afterList; hook != nil {
		r.afterList = nil
		hook()
	}
	return items, err
}

type interleavingRepo struct {
	repositories.Repository
	items *interleavingItemRepo
}

func (r *interleavingRepo) GradeItem() repositories.GradeItemRepository { return r.items }

// scoreServiceWithInterleave builds a score service whose batch listing is
// followed by the given concurrent change.
func scoreServiceWithInterleave(env *testEnv, change func()) ScoreService {
	base := memory.NewRepository(env.store)
	repo := &interleavingRepo{
		Repository: base,
		items:      &interleavingItemRepo{GradeItemRepository: base.GradeItem(), afterList: change},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScoreService(repo, env.services.Aggregator, env.services.Verification, env.services.Activity,
		cache.NewNoopCache(), logger, validator.New())
}

func TestScoreService_ItemsChangedDuringSave(t *testing.T) {
	t.Run("RemovedItemGetsNoScore", func(t *testing.T) {
		env := newTestEnv(t)
		studentID := env.store.AddStudent("2025-0001", "Ana Cruz")
		first := env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)
		second := env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)
		env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)

		svc := scoreServiceWithInterleave(env, func() {
			_, err := env.services.GradeItems.RemoveItem(env.ctx, second.ID, asTeacherA)
			require.NoError(t, err)
		})

		_, err := svc.UpsertScores(env.ctx, &SaveGradesRequest{
			SectionID: testSectionID,
			SubjectID: testSubjectID,
			PeriodID:  env.periodID,
			Grades: []StudentGradeEntry{
				{StudentAccountRef: "2025-0001", WrittenWork: scores(80, 90)},
			},
		}, asTeacherA)

		var ruleErr *BusinessRuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, RuleGradeItemsChanged, ruleErr.Rule)

		stored, err := memory.NewRepository(env.store).Score().ListByStudent(env.ctx, studentID, []uint{first.ID, second.ID})
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("LoweredMaximumIsEnforced", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.AddStudent("2025-0001", "Ana Cruz")
		item := env.addItem(t, asTeacherA, models.CategoryPerformanceTask, nil)

		svc := scoreServiceWithInterleave(env, func() {
			_, err := env.services.GradeItems.UpdateItem(env.ctx, &UpdateGradeItemRequest{
				ItemID:   item.ID,
				MaxScore: floatPtr(50),
			}, asTeacherA)
			require.NoError(t, err)
		})

		_, err := svc.UpsertScores(env.ctx, &SaveGradesRequest{
			SectionID: testSectionID,
			SubjectID: testSubjectID,
			PeriodID:  env.periodID,
			Grades: []StudentGradeEntry{
				{StudentAccountRef: "2025-0001", PerformanceTasks: scores(80)},
			},
		}, asTeacherA)

		var errs ValidationErrors
		require.ErrorAs(t, err, &errs)
		assert.Equal(t, []string{"grades[0].performanceTasks[0]"}, errs.Fields())
	})

	t.Run("UnchangedItemsSave", func(t *testing.T) {
		env := newTestEnv(t)
		studentID := env.store.AddStudent("2025-0001", "Ana Cruz")
		env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)
		env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)

		svc := scoreServiceWithInterleave(env, func() {
			env.addItem(t, asTeacherA, models.CategoryWrittenWork, nil)
		})

		result, err := svc.UpsertScores(env.ctx, &SaveGradesRequest{
			SectionID: testSectionID,
			SubjectID: testSubjectID,
			PeriodID:  env.periodID,
			Grades: []StudentGradeEntry{
				{StudentAccountRef: "2025-0001", WrittenWork: scores(70, 90)},
			},
		}, asTeacherA)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-0001"}, result.Saved)
		assert.Equal(t, 80.0, env.record(t, studentID).WrittenWorkAverage)
	})
}

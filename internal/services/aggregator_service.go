package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"gorm.io/datatypes"
)

// GradeComputation is the output of ComputeGrade
type GradeComputation struct {
	Averages   map[models.CategoryCode]float64
	FinalGrade float64
}

// ComputeGrade averages the present scores of each category (0 when a
// category has none) and sums average x weight. Scores for items not in
// items are ignored. No rounding is applied.
func ComputeGrade(items []*models.GradeItem, scores []*models.StudentScore, weights map[models.CategoryCode]float64) GradeComputation {
	byItem := make(map[uint]float64, len(scores))
	for _, score := range scores {
		byItem[score.GradeItemID] = score.Score
	}

	sums := make(map[models.CategoryCode]float64, len(models.CategoryCodes))
	counts := make(map[models.CategoryCode]int, len(models.CategoryCodes))
	for _, item := range items {
		score, ok := byItem[item.ID]
		if !ok {
			continue
		}
		sums[item.CategoryCode] += score
		counts[item.CategoryCode]++
	}

	result := GradeComputation{Averages: make(map[models.CategoryCode]float64, len(models.CategoryCodes))}
	for _, code := range models.CategoryCodes {
		avg := 0.0
		if counts[code] > 0 {
			avg = sums[code] / float64(counts[code])
		}
		result.Averages[code] = avg
		result.FinalGrade += avg * weights[code]
	}
	return result
}

type aggregatorService struct {
	repo       repositories.Repository
	categories CategoryService
	cache      cache.CacheService
	cacheTTL   time.Duration
	logger     *slog.Logger
}

func NewAggregatorService(repo repositories.Repository, categories CategoryService, cacheService cache.CacheService, cacheTTL time.Duration, logger *slog.Logger) AggregatorService {
	return &aggregatorService{
		repo:       repo,
		categories: categories,
		cache:      cacheService,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

func (s *aggregatorService) Recompute(ctx context.Context, studentID, sectionID, subjectID, periodID uint) (*models.GradeRecord, error) {
	key, err := resolveRecordKey(ctx, s.repo, studentID, models.GradeScope{
		SectionID: sectionID,
		SubjectID: subjectID,
		PeriodID:  periodID,
	})
	if err != nil {
		return nil, err
	}

	var record *models.GradeRecord
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		existing, err := tx.GradeRecord().GetForUpdate(ctx, key)
		if err != nil && !repositories.IsNotFoundError(err) {
			return storageErr("lock_grade_record", err)
		}
		// A verified record is frozen; hand it back as stored.
		if existing != nil && existing.Verified {
			record = existing
			return nil
		}
		record, err = s.RecomputeInTx(ctx, tx, key, existing)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateRecords(ctx, s.cache, s.logger, key.Scope())
	return record, nil
}

// RecomputeInTx reads every active item in the scope, whoever owns it,
// together with the student's scores, and upserts the record. The
// verification block of existing is carried over unchanged.
func (s *aggregatorService) RecomputeInTx(ctx context.Context, tx repositories.Repository, key models.GradeRecordKey, existing *models.GradeRecord) (*models.GradeRecord, error) {
	categories, err := s.categories.EnsureCategories(ctx, tx)
	if err != nil {
		return nil, err
	}
	weights := categoryWeights(categories)

	items, err := tx.GradeItem().ListActive(ctx, repositories.GradeItemFilters{
		SectionID: key.SectionID,
		SubjectID: key.SubjectID,
		PeriodID:  key.PeriodID,
	})
	if err != nil {
		return nil, storageErr("list_grade_items", err)
	}

	itemIDs := make([]uint, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}
	scores, err := tx.Score().ListByStudent(ctx, key.StudentID, itemIDs)
	if err != nil {
		return nil, storageErr("list_scores", err)
	}

	computation := ComputeGrade(items, scores, weights)

	weightsJSON, err := json.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}

	record := &models.GradeRecord{
		StudentID:  key.StudentID,
		SectionID:  key.SectionID,
		SubjectID:  key.SubjectID,
		SchoolYear: key.SchoolYear,
		PeriodID:   key.PeriodID,
	}
	if existing != nil {
		copied := *existing
		record = &copied
	}
	record.WrittenWorkAverage = computation.Averages[models.CategoryWrittenWork]
	record.PerformanceTaskAverage = computation.Averages[models.CategoryPerformanceTask]
	record.QuarterlyAssessmentAverage = computation.Averages[models.CategoryQuarterlyAssessment]
	record.FinalGrade = computation.FinalGrade
	record.Weights = datatypes.JSON(weightsJSON)
	record.ComputedAt = time.Now()

	if err := tx.GradeRecord().Save(ctx, record); err != nil {
		return nil, storageErr("save_grade_record", err)
	}
	return record, nil
}

func (s *aggregatorService) GetRecord(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error) {
	record, err := s.repo.GradeRecord().Get(ctx, key)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGradeRecordNotFound
		}
		return nil, storageErr("get_grade_record", err)
	}
	return record, nil
}

// ListRecords returns every record in scope ordered by student, served from
// cache when possible.
func (s *aggregatorService) ListRecords(ctx context.Context, scope models.GradeScope) ([]*models.GradeRecord, error) {
	cacheKey := recordsCacheKey(scope)

	var cached []*models.GradeRecord
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Grade record cache read failed", "key", cacheKey, "error", err)
	}

	records, err := s.repo.GradeRecord().ListByScope(ctx, scope)
	if err != nil {
		return nil, storageErr("list_grade_records", err)
	}

	if err := s.cache.Set(ctx, cacheKey, records, s.cacheTTL); err != nil {
		s.logger.Warn("Grade record cache write failed", "key", cacheKey, "error", err)
	}
	return records, nil
}

// ===== SHARED HELPERS =====

// resolveRecordKey looks up the period's school year to build the record key
func resolveRecordKey(ctx context.Context, repo repositories.Repository, studentID uint, scope models.GradeScope) (models.GradeRecordKey, error) {
	period, err := repo.Period().GetByID(ctx, scope.PeriodID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return models.GradeRecordKey{}, ErrPeriodNotFound
		}
		return models.GradeRecordKey{}, storageErr("get_period", err)
	}
	return models.GradeRecordKey{
		StudentID:  studentID,
		SectionID:  scope.SectionID,
		SubjectID:  scope.SubjectID,
		SchoolYear: period.SchoolYear,
		PeriodID:   scope.PeriodID,
	}, nil
}

func recordsCacheKey(scope models.GradeScope) string {
	return fmt.Sprintf("grade_records:%d:%d:%d", scope.SectionID, scope.SubjectID, scope.PeriodID)
}

func itemsCacheKey(scope models.GradeScope, teacherID string) string {
	return fmt.Sprintf("grade_items:%d:%d:%d:%s", scope.SectionID, scope.SubjectID, scope.PeriodID, teacherID)
}

func invalidateRecords(ctx context.Context, cacheService cache.CacheService, logger *slog.Logger, scope models.GradeScope) {
	if err := cacheService.Delete(ctx, recordsCacheKey(scope)); err != nil {
		logger.Warn("Failed to invalidate grade record cache", "scope", scope, "error", err)
	}
}

func invalidateItems(ctx context.Context, cacheService cache.CacheService, logger *slog.Logger, scope models.GradeScope) {
	pattern := fmt.Sprintf("grade_items:%d:%d:%d:*", scope.SectionID, scope.SubjectID, scope.PeriodID)
	if err := cacheService.DeletePattern(ctx, pattern); err != nil {
		logger.Warn("Failed to invalidate grade item cache", "pattern", pattern, "error", err)
	}
}

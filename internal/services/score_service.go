package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
)

var categoryFields = map[models.CategoryCode]string{
	models.CategoryWrittenWork:         "writtenWork",
	models.CategoryPerformanceTask:     "performanceTasks",
	models.CategoryQuarterlyAssessment: "quarterlyAssessment",
}

type scoreService struct {
	repo         repositories.Repository
	aggregator   AggregatorService
	verification VerificationService
	activity     ActivityRecorder
	cache        cache.CacheService
	logger       *ServiceLogger
	baseLogger   *slog.Logger
	validator    *validator.Validator
}

func NewScoreService(repo repositories.Repository, aggregator AggregatorService, verification VerificationService, activity ActivityRecorder, cacheService cache.CacheService, logger *slog.Logger, validator *validator.Validator) ScoreService {
	return &scoreService{
		repo:         repo,
		aggregator:   aggregator,
		verification: verification,
		activity:     activity,
		cache:        cacheService,
		logger: NewServiceLogger(logger, LogConfig{
			Service:   "gradebook",
			Component: "scores",
		}),
		baseLogger: logger,
		validator:  validator,
	}
}

// UpsertScores validates the whole batch, then writes each student in its
// own transaction. Unknown and verified students are skipped; a storage
// failure aborts the call with earlier students already committed.
func (s *scoreService) UpsertScores(ctx context.Context, req *SaveGradesRequest, caller models.Identity) (result *SaveGradesResult, err error) {
	op := s.logger.WithOperation(ctx, "upsert_scores", caller.UserID)
	defer func() { op.LogResult(req.SectionID, "section_subject", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	scope := req.Scope()

	if req.GradingConfig != nil {
		s.baseLogger.Debug("Ignoring client grading config, registry weights apply",
			"user_id", caller.UserID,
			"grading_config", SanitizeForLogging(req.GradingConfig))
	}

	items, err := s.repo.GradeItem().ListActive(ctx, itemFilters(scope, caller.UserID))
	if err != nil {
		return nil, storageErr("list_grade_items", err)
	}
	grouped := groupItems(items)

	if err := validateScoreBatch(req, grouped); err != nil {
		return nil, err
	}

	// Resolve the school year up front so every record key is known before writing.
	baseKey, err := resolveRecordKey(ctx, s.repo, 0, scope)
	if err != nil {
		return nil, err
	}

	result = &SaveGradesResult{
		Saved:   []string{},
		Skipped: []SkippedStudent{},
		Records: []*models.GradeRecord{},
	}
	var savedIDs []uint

	for i := range req.Grades {
		entry := &req.Grades[i]

		studentID, err := s.repo.Student().ResolveAccountNumber(ctx, entry.StudentAccountRef)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				s.skip(ctx, result, caller, entry.StudentAccountRef, SkipReasonStudentNotFound)
				continue
			}
			return nil, storageErr("resolve_student", err)
		}

		key := baseKey
		key.StudentID = studentID

		record, err := s.saveStudent(ctx, i, key, entry, grouped, caller)
		if err != nil {
			if IsLocked(err) {
				s.skip(ctx, result, caller, entry.StudentAccountRef, SkipReasonLocked)
				continue
			}
			s.finish(ctx, scope, caller, req, result, savedIDs)
			return nil, err
		}

		result.Saved = append(result.Saved, entry.StudentAccountRef)
		result.Records = append(result.Records, record)
		savedIDs = append(savedIDs, studentID)
	}

	s.finish(ctx, scope, caller, req, result, savedIDs)
	return result, nil
}

// saveStudent takes the item-scope locks of the categories it writes, maps
// the positional scores onto the items as they are inside the transaction,
// checks the gate under the record's row lock, upserts and recomputes.
// Locks are taken scope first, record second, the same order item removal uses.
func (s *scoreService) saveStudent(ctx context.Context, index int, key models.GradeRecordKey, entry *StudentGradeEntry, listed *GradeItemListResponse, caller models.Identity) (*models.GradeRecord, error) {
	var record *models.GradeRecord
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		current, err := lockWrittenItems(ctx, tx, key.Scope(), index, entry, listed, caller)
		if err != nil {
			return err
		}

		existing, err := s.verification.EnsureUnlocked(ctx, tx, key)
		if err != nil {
			return err
		}

		now := time.Now()
		for _, code := range models.CategoryCodes {
			categoryItems := *current.byCategory(code)
			for pos, value := range entry.scores(code) {
				if !value.Present {
					continue
				}
				score := &models.StudentScore{
					StudentID:   key.StudentID,
					GradeItemID: categoryItems[pos].ID,
					Score:       value.Value,
					GradedBy:    caller.UserID,
					GradedAt:    now,
				}
				if err := tx.Score().Upsert(ctx, score); err != nil {
					return storageErr("upsert_score", err)
				}
			}
		}

		record, err = s.aggregator.RecomputeInTx(ctx, tx, key, existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// lockWrittenItems locks every category the entry writes to, re-reads the
// caller's active items and rejects the write when a scored position no
// longer maps to the item the batch was validated against.
func lockWrittenItems(ctx context.Context, tx repositories.Repository, scope models.GradeScope, index int, entry *StudentGradeEntry, listed *GradeItemListResponse, caller models.Identity) (*GradeItemListResponse, error) {
	for _, code := range models.CategoryCodes {
		if !hasPresentScore(entry.scores(code)) {
			continue
		}
		if err := tx.LockItemScope(ctx, repositories.ItemScope{
			SectionID:    scope.SectionID,
			SubjectID:    scope.SubjectID,
			PeriodID:     scope.PeriodID,
			CategoryCode: code,
		}); err != nil {
			return nil, storageErr("lock_item_scope", err)
		}
	}

	items, err := tx.GradeItem().ListActive(ctx, itemFilters(scope, caller.UserID))
	if err != nil {
		return nil, storageErr("list_grade_items", err)
	}
	current := groupItems(items)

	var errs ValidationErrors
	for _, code := range models.CategoryCodes {
		before := *listed.byCategory(code)
		fresh := *current.byCategory(code)
		for pos, value := range entry.scores(code) {
			if !value.Present {
				continue
			}
			if pos >= len(fresh) || fresh[pos].ID != before[pos].ID {
				return nil, NewBusinessRuleError(RuleGradeItemsChanged,
					"grade items changed while saving; reload the items and retry",
					map[string]interface{}{
						"category_code": code,
						"position":      pos,
						"item_id":       before[pos].ID,
					})
			}
			if value.Value > fresh[pos].MaxScore {
				errs = errs.Add(fmt.Sprintf("grades[%d].%s[%d]", index, categoryFields[code], pos),
					fmt.Sprintf("must not exceed the item maximum of %g", fresh[pos].MaxScore), value.Value)
			}
		}
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return current, nil
}

func hasPresentScore(values []ScoreValue) bool {
	for _, v := range values {
		if v.Present {
			return true
		}
	}
	return false
}

func (s *scoreService) skip(ctx context.Context, result *SaveGradesResult, caller models.Identity, ref, reason string) {
	s.logger.LogSkipped(ctx, "upsert_scores", caller.UserID, ref, reason)
	result.Skipped = append(result.Skipped, SkippedStudent{StudentRef: ref, Reason: reason})
}

// finish runs the post-commit side effects for whatever was saved
func (s *scoreService) finish(ctx context.Context, scope models.GradeScope, caller models.Identity, req *SaveGradesRequest, result *SaveGradesResult, savedIDs []uint) {
	invalidateRecords(ctx, s.cache, s.baseLogger, scope)
	if len(savedIDs) == 0 {
		return
	}

	skipped := make([]string, len(result.Skipped))
	for i, sk := range result.Skipped {
		skipped[i] = sk.StudentRef
	}

	metadata := map[string]interface{}{
		"section_id": scope.SectionID,
		"subject_id": scope.SubjectID,
		"period_id":  scope.PeriodID,
		"saved":      len(result.Saved),
		"skipped":    len(result.Skipped),
	}
	if req.GradingConfig != nil {
		metadata["grading_config"] = req.GradingConfig
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:      models.ActivityGradesSaved,
		Actor:       caller,
		TargetType:  "section_subject",
		TargetID:    &scope.SectionID,
		Description: fmt.Sprintf("Saved grades for %d student(s), skipped %d", len(result.Saved), len(result.Skipped)),
		Metadata:    metadata,
		Event:       events.NewGradesSavedEvent(scope, caller.UserID, savedIDs, skipped),
	})
}

// validateScoreBatch rejects the batch before any write when an array is
// longer than its item list or a present score is non-finite, negative or
// above the item's maximum.
func validateScoreBatch(req *SaveGradesRequest, grouped *GradeItemListResponse) error {
	var errs ValidationErrors

	for i := range req.Grades {
		entry := &req.Grades[i]
		for _, code := range models.CategoryCodes {
			field := categoryFields[code]
			values := entry.scores(code)
			categoryItems := *grouped.byCategory(code)

			if len(values) > len(categoryItems) {
				errs = errs.Add(
					fmt.Sprintf("grades[%d].%s", i, field),
					fmt.Sprintf("has %d scores but only %d active items", len(values), len(categoryItems)),
					len(values))
				continue
			}

			for pos, value := range values {
				path := fmt.Sprintf("grades[%d].%s[%d]", i, field, pos)
				switch {
				case value.Invalid():
					errs = errs.Add(path, "must be a number", value.Raw)
				case !value.Present:
				case math.IsNaN(value.Value) || math.IsInf(value.Value, 0):
					errs = errs.Add(path, "must be a finite number", fmt.Sprint(value.Value))
				case value.Value < 0:
					errs = errs.Add(path, "must not be negative", value.Value)
				case value.Value > categoryItems[pos].MaxScore:
					errs = errs.Add(path,
						fmt.Sprintf("must not exceed the item maximum of %g", categoryItems[pos].MaxScore), value.Value)
				}
			}
		}
	}

	return errs.OrNil()
}

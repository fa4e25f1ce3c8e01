package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
)

type gradeItemService struct {
	repo         repositories.Repository
	categories   CategoryService
	aggregator   AggregatorService
	verification VerificationService
	activity     ActivityRecorder
	cache        cache.CacheService
	cacheTTL     time.Duration
	logger       *ServiceLogger
	baseLogger   *slog.Logger
	validator    *validator.Validator
}

type GradeItemServiceDeps struct {
	Repo         repositories.Repository
	Categories   CategoryService
	Aggregator   AggregatorService
	Verification VerificationService
	Activity     ActivityRecorder
	Cache        cache.CacheService
	CacheTTL     time.Duration
	Logger       *slog.Logger
	Validator    *validator.Validator
}

func NewGradeItemService(deps GradeItemServiceDeps) GradeItemService {
	return &gradeItemService{
		repo:         deps.Repo,
		categories:   deps.Categories,
		aggregator:   deps.Aggregator,
		verification: deps.Verification,
		activity:     deps.Activity,
		cache:        deps.Cache,
		cacheTTL:     deps.CacheTTL,
		logger: NewServiceLogger(deps.Logger, LogConfig{
			Service:   "gradebook",
			Component: "grade_items",
		}),
		baseLogger: deps.Logger,
		validator:  deps.Validator,
	}
}

// ===== READ =====

func (s *gradeItemService) ListItems(ctx context.Context, scope models.GradeScope, teacherID string) (*GradeItemListResponse, error) {
	if err := s.validator.Validate(&scope); err != nil {
		return nil, err
	}

	cacheKey := itemsCacheKey(scope, teacherID)
	var cached GradeItemListResponse
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.baseLogger.Warn("Grade item cache read failed", "key", cacheKey, "error", err)
	}

	items, err := s.repo.GradeItem().ListActive(ctx, itemFilters(scope, teacherID))
	if err != nil {
		return nil, storageErr("list_grade_items", err)
	}

	locked, err := s.repo.GradeRecord().HasVerified(ctx, scope)
	if err != nil {
		return nil, storageErr("check_verified_records", err)
	}

	response := groupItems(items)
	response.Locked = locked

	if err := s.cache.Set(ctx, cacheKey, response, s.cacheTTL); err != nil {
		s.baseLogger.Warn("Grade item cache write failed", "key", cacheKey, "error", err)
	}
	return response, nil
}

// ===== ADD =====

// AddItem numbers the new item with the smallest unused n among active
// "<code> <n>" names, holding the scope lock for the whole transaction.
func (s *gradeItemService) AddItem(ctx context.Context, req *AddGradeItemRequest, caller models.Identity) (item *models.GradeItem, err error) {
	op := s.logger.WithOperation(ctx, "add_grade_item", caller.UserID)
	defer func() { op.LogResult(itemID(item), "grade_item", err) }()

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		req.Name = nil
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	scope := repositories.ItemScope{
		SectionID:    req.SectionID,
		SubjectID:    req.SubjectID,
		PeriodID:     req.PeriodID,
		CategoryCode: req.CategoryCode,
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if _, err := s.categories.EnsureCategories(ctx, tx); err != nil {
			return err
		}
		if err := tx.LockItemScope(ctx, scope); err != nil {
			return storageErr("lock_item_scope", err)
		}

		code := req.CategoryCode
		existing, err := tx.GradeItem().ListActive(ctx, repositories.GradeItemFilters{
			SectionID:    req.SectionID,
			SubjectID:    req.SubjectID,
			PeriodID:     req.PeriodID,
			CategoryCode: &code,
		})
		if err != nil {
			return storageErr("list_grade_items", err)
		}

		next := NextItemNumber(code, existing)
		name := fmt.Sprintf("%s %d", code, next)
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
		}
		maxScore := models.DefaultMaxScore
		if req.MaxScore != nil {
			maxScore = *req.MaxScore
		}

		item = &models.GradeItem{
			SectionID:    req.SectionID,
			SubjectID:    req.SubjectID,
			PeriodID:     req.PeriodID,
			CategoryCode: code,
			TeacherID:    caller.UserID,
			Name:         name,
			Sequence:     next,
			MaxScore:     maxScore,
			Status:       models.GradeItemActive,
		}
		if err := tx.GradeItem().Create(ctx, item); err != nil {
			return storageErr("create_grade_item", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateItems(ctx, s.cache, s.baseLogger, req.Scope())
	s.activity.Record(ctx, ActivityEntry{
		Action:      models.ActivityGradeItemAdded,
		Actor:       caller,
		TargetType:  "grade_item",
		TargetID:    &item.ID,
		Description: fmt.Sprintf("Added grade item %q (%s, max %.2f)", item.Name, item.CategoryCode, item.MaxScore),
		Metadata:    itemMetadata(item),
		Event:       events.NewGradeItemEvent(events.EventGradeItemAdded, item),
	})
	return item, nil
}

var itemNumberPattern = regexp.MustCompile(`^([A-Z]{2}) (\d+)$`)

// NextItemNumber returns the smallest positive n not used by an active item
// named "<code> <n>". Custom-named items do not reserve a number.
func NextItemNumber(code models.CategoryCode, items []*models.GradeItem) int {
	used := make(map[int]bool, len(items))
	for _, item := range items {
		match := itemNumberPattern.FindStringSubmatch(item.Name)
		if match == nil || match[1] != string(code) {
			continue
		}
		n, err := strconv.Atoi(match[2])
		if err == nil && n > 0 {
			used[n] = true
		}
	}

	n := 1
	for used[n] {
		n++
	}
	return n
}

// ===== UPDATE =====

func (s *gradeItemService) UpdateItem(ctx context.Context, req *UpdateGradeItemRequest, caller models.Identity) (item *models.GradeItem, err error) {
	op := s.logger.WithOperation(ctx, "update_grade_item", caller.UserID)
	defer func() { op.LogResult(req.ItemID, "grade_item", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var before models.GradeItem
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		current, err := s.loadOwnedItem(ctx, tx, req.ItemID, caller, "update")
		if err != nil {
			return err
		}
		before = *current

		if err := validateItemUpdate(req); err != nil {
			return err
		}

		if req.Name != nil {
			current.Name = strings.TrimSpace(*req.Name)
		}
		if req.MaxScore != nil {
			current.MaxScore = *req.MaxScore
		}
		current.UpdatedAt = time.Now()

		if err := tx.GradeItem().Update(ctx, current); err != nil {
			return storageErr("update_grade_item", err)
		}
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateItems(ctx, s.cache, s.baseLogger, item.Scope())
	op.LogAudit(AuditEventUpdate, item.ID, "grade_item",
		map[string]interface{}{"name": before.Name, "max_score": before.MaxScore},
		map[string]interface{}{"name": item.Name, "max_score": item.MaxScore})
	s.activity.Record(ctx, ActivityEntry{
		Action:      models.ActivityGradeItemUpdated,
		Actor:       caller,
		TargetType:  "grade_item",
		TargetID:    &item.ID,
		Description: fmt.Sprintf("Updated grade item %q", item.Name),
		Metadata: map[string]interface{}{
			"previous_name":      before.Name,
			"previous_max_score": before.MaxScore,
			"name":               item.Name,
			"max_score":          item.MaxScore,
		},
		Event: events.NewGradeItemEvent(events.EventGradeItemUpdated, item),
	})
	return item, nil
}

func validateItemUpdate(req *UpdateGradeItemRequest) error {
	if req.Name == nil && req.MaxScore == nil {
		return ValidationErrors{*NewValidationError("name", "at least one of name or totalScore is required", nil)}
	}

	var errs ValidationErrors
	if req.MaxScore != nil && !validator.IsValidMaxScore(*req.MaxScore) {
		errs = errs.Add("totalScore",
			fmt.Sprintf("must be a finite number greater than 0 and at most %.0f", models.MaxAllowedScore), *req.MaxScore)
	}
	if req.Name != nil && !validator.IsValidItemName(*req.Name) {
		errs = errs.Add("name", "must be between 1 and 100 characters", *req.Name)
	}
	return errs.OrNil()
}

// ===== REMOVE =====

func (s *gradeItemService) RemoveItem(ctx context.Context, itemID uint, caller models.Identity) (item *models.GradeItem, err error) {
	op := s.logger.WithOperation(ctx, "remove_grade_item", caller.UserID)
	defer func() { op.LogResult(itemID, "grade_item", err) }()

	if itemID == 0 {
		return nil, ValidationErrors{*NewValidationError("itemId", "is required", itemID)}
	}

	var deletedScores int64
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		target, err := s.loadOwnedItem(ctx, tx, itemID, caller, "remove")
		if err != nil {
			return err
		}
		item = target
		deletedScores, err = s.removeInTx(ctx, tx, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterRemove(ctx, item, deletedScores, caller)
	return item, nil
}

func (s *gradeItemService) RemoveLatestItem(ctx context.Context, scope models.GradeScope, code models.CategoryCode, caller models.Identity) (item *models.GradeItem, err error) {
	op := s.logger.WithOperation(ctx, "remove_latest_grade_item", caller.UserID)
	defer func() { op.LogResult(itemID(item), "grade_item", err) }()

	if err := s.validator.Validate(&scope); err != nil {
		return nil, err
	}
	if !code.IsValid() {
		return nil, ValidationErrors{*NewValidationError("categoryId", "must be one of WW, PT, QA", code)}
	}

	itemScope := repositories.ItemScope{
		SectionID:    scope.SectionID,
		SubjectID:    scope.SubjectID,
		PeriodID:     scope.PeriodID,
		CategoryCode: code,
	}

	var deletedScores int64
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		teacherID := caller.UserID
		target, err := tx.GradeItem().LatestActive(ctx, itemScope, &teacherID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrGradeItemNotFound
			}
			return storageErr("latest_grade_item", err)
		}
		item = target
		deletedScores, err = s.removeInTx(ctx, tx, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterRemove(ctx, item, deletedScores, caller)
	return item, nil
}

// removeInTx enforces the minimum-one rule and the verification lock under
// the scope lock, then deletes the item with its scores and recomputes every
// record in scope.
func (s *gradeItemService) removeInTx(ctx context.Context, tx repositories.Repository, item *models.GradeItem) (int64, error) {
	scope := repositories.ItemScope{
		SectionID:    item.SectionID,
		SubjectID:    item.SubjectID,
		PeriodID:     item.PeriodID,
		CategoryCode: item.CategoryCode,
	}
	if err := tx.LockItemScope(ctx, scope); err != nil {
		return 0, storageErr("lock_item_scope", err)
	}

	// A concurrent removal may have committed while this one waited for the lock.
	current, err := tx.GradeItem().GetByID(ctx, item.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrGradeItemNotFound
		}
		return 0, storageErr("get_grade_item", err)
	}
	if current.Status != models.GradeItemActive {
		return 0, ErrGradeItemNotFound
	}

	count, err := tx.GradeItem().CountActive(ctx, scope)
	if err != nil {
		return 0, storageErr("count_grade_items", err)
	}
	if count <= 1 {
		return 0, NewBusinessRuleError(RuleMinItemsPerCategory, "cannot remove the last grade item", map[string]interface{}{
			"item_id":       item.ID,
			"category_code": item.CategoryCode,
			"active_items":  count,
		})
	}

	gradeScope := item.Scope()
	records, err := tx.GradeRecord().ListByScope(ctx, gradeScope)
	if err != nil {
		return 0, storageErr("list_grade_records", err)
	}

	// Lock every record first so no verification can land mid-removal.
	unlocked := make([]*models.GradeRecord, 0, len(records))
	for _, record := range records {
		current, err := s.verification.EnsureUnlocked(ctx, tx, recordKeyOf(record))
		if err != nil {
			return 0, err
		}
		if current != nil {
			unlocked = append(unlocked, current)
		}
	}

	deleted, err := tx.Score().DeleteByItem(ctx, item.ID)
	if err != nil {
		return 0, storageErr("delete_scores", err)
	}
	if err := tx.GradeItem().Delete(ctx, item.ID); err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrGradeItemNotFound
		}
		return 0, storageErr("delete_grade_item", err)
	}

	for _, record := range unlocked {
		if _, err := s.aggregator.RecomputeInTx(ctx, tx, recordKeyOf(record), record); err != nil {
			return 0, err
		}
	}
	return deleted, nil
}

func (s *gradeItemService) afterRemove(ctx context.Context, item *models.GradeItem, deletedScores int64, caller models.Identity) {
	scope := item.Scope()
	invalidateItems(ctx, s.cache, s.baseLogger, scope)
	invalidateRecords(ctx, s.cache, s.baseLogger, scope)

	item.Status = models.GradeItemRemoved
	metadata := itemMetadata(item)
	metadata["deleted_scores"] = deletedScores

	s.activity.Record(ctx, ActivityEntry{
		Action:      models.ActivityGradeItemRemoved,
		Actor:       caller,
		TargetType:  "grade_item",
		TargetID:    &item.ID,
		Description: fmt.Sprintf("Removed grade item %q and %d score(s)", item.Name, deletedScores),
		Metadata:    metadata,
		Event:       events.NewGradeItemEvent(events.EventGradeItemRemoved, item),
	})
}

// ===== HELPERS =====

func (s *gradeItemService) loadOwnedItem(ctx context.Context, tx repositories.Repository, id uint, caller models.Identity, action string) (*models.GradeItem, error) {
	item, err := tx.GradeItem().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGradeItemNotFound
		}
		return nil, storageErr("get_grade_item", err)
	}
	if item.Status != models.GradeItemActive {
		return nil, ErrGradeItemNotFound
	}
	if item.TeacherID != caller.UserID {
		return nil, NewPermissionError(caller.UserID, id, "grade_item", action, "not the owner of the grade item")
	}
	return item, nil
}

func itemFilters(scope models.GradeScope, teacherID string) repositories.GradeItemFilters {
	filters := repositories.GradeItemFilters{
		SectionID: scope.SectionID,
		SubjectID: scope.SubjectID,
		PeriodID:  scope.PeriodID,
	}
	if teacherID != "" {
		filters.TeacherID = &teacherID
	}
	return filters
}

func groupItems(items []*models.GradeItem) *GradeItemListResponse {
	response := &GradeItemListResponse{
		WrittenWork:         []*models.GradeItem{},
		PerformanceTasks:    []*models.GradeItem{},
		QuarterlyAssessment: []*models.GradeItem{},
	}
	for _, item := range items {
		bucket := response.byCategory(item.CategoryCode)
		*bucket = append(*bucket, item)
	}
	return response
}

func recordKeyOf(record *models.GradeRecord) models.GradeRecordKey {
	return models.GradeRecordKey{
		StudentID:  record.StudentID,
		SectionID:  record.SectionID,
		SubjectID:  record.SubjectID,
		SchoolYear: record.SchoolYear,
		PeriodID:   record.PeriodID,
	}
}

func itemMetadata(item *models.GradeItem) map[string]interface{} {
	return map[string]interface{}{
		"section_id":    item.SectionID,
		"subject_id":    item.SubjectID,
		"period_id":     item.PeriodID,
		"category_code": item.CategoryCode,
		"name":          item.Name,
		"max_score":     item.MaxScore,
	}
}

func itemID(item *models.GradeItem) uint {
	if item == nil {
		return 0
	}
	return item.ID
}

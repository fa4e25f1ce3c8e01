package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every backend when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err is a missing-row error from any backend
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// Repository groups the gradebook repositories. A Repository handed to a
// WithTransaction callback is bound to that transaction.
type Repository interface {
	Category() CategoryRepository
	GradeItem() GradeItemRepository
	Score() ScoreRepository
	GradeRecord() GradeRecordRepository
	Student() StudentRepository
	Period() PeriodRepository
	ActivityLog() ActivityLogRepository

	// WithTransaction runs fn in a transaction, committing when fn returns nil.
	WithTransaction(ctx context.Context, fn func(tx Repository) error) error

	// LockItemScope serialises item numbering for one scope until the
	// enclosing transaction ends. Must be called inside WithTransaction.
	LockItemScope(ctx context.Context, scope ItemScope) error
}

// ===== SHARED FILTER STRUCTS =====

// ItemScope is the key gap-filling numbering and the minimum-count rule apply to.
type ItemScope struct {
	SectionID    uint                `json:"section_id"`
	SubjectID    uint                `json:"subject_id"`
	PeriodID     uint                `json:"period_id"`
	CategoryCode models.CategoryCode `json:"category_code"`
}

func (s ItemScope) LockKey() string {
	return fmt.Sprintf("grade_items:%d:%d:%d:%s", s.SectionID, s.SubjectID, s.PeriodID, s.CategoryCode)
}

type GradeItemFilters struct {
	SectionID    uint
	SubjectID    uint
	PeriodID     uint
	TeacherID    *string
	CategoryCode *models.CategoryCode
}

// ===== REPOSITORIES =====

type CategoryRepository interface {
	// EnsureExists inserts the category if its code is absent; existing rows are left untouched.
	EnsureExists(ctx context.Context, category *models.GradeCategory) error
	List(ctx context.Context) ([]*models.GradeCategory, error)
}

type GradeItemRepository interface {
	Create(ctx context.Context, item *models.GradeItem) error
	GetByID(ctx context.Context, id uint) (*models.GradeItem, error)
	Update(ctx context.Context, item *models.GradeItem) error
	Delete(ctx context.Context, id uint) error

	// ListActive returns active items ordered by sequence, then id.
	ListActive(ctx context.Context, filters GradeItemFilters) ([]*models.GradeItem, error)
	CountActive(ctx context.Context, scope ItemScope) (int64, error)
	// LatestActive returns the most recently created active item in scope.
	LatestActive(ctx context.Context, scope ItemScope, teacherID *string) (*models.GradeItem, error)
}

type ScoreRepository interface {
	// Upsert inserts or overwrites the score for (StudentID, GradeItemID).
	Upsert(ctx context.Context, score *models.StudentScore) error
	ListByStudent(ctx context.Context, studentID uint, itemIDs []uint) ([]*models.StudentScore, error)
	ListByItems(ctx context.Context, itemIDs []uint) ([]*models.StudentScore, error)
	DeleteByItem(ctx context.Context, itemID uint) (int64, error)
}

type GradeRecordRepository interface {
	// GetForUpdate loads the record and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error)
	Get(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error)
	// Save upserts the record on its natural key.
	Save(ctx context.Context, record *models.GradeRecord) error
	ListByScope(ctx context.Context, scope models.GradeScope) ([]*models.GradeRecord, error)
	HasVerified(ctx context.Context, scope models.GradeScope) (bool, error)
}

type StudentRepository interface {
	// ResolveAccountNumber maps a student account number to the internal student id.
	ResolveAccountNumber(ctx context.Context, accountNumber string) (uint, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Account, error)
}

type PeriodRepository interface {
	GetByID(ctx context.Context, id uint) (*models.GradingPeriod, error)
}

type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

package services

import (
	"context"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
)

// CategoryService is the category registry
type CategoryService interface {
	// EnsureCategories runs inside repo, which may be a transaction.
	EnsureCategories(ctx context.Context, repo repositories.Repository) (map[models.CategoryCode]*models.GradeCategory, error)
	List(ctx context.Context) ([]*models.GradeCategory, error)
}

type GradeItemService interface {
	ListItems(ctx context.Context, scope models.GradeScope, teacherID string) (*GradeItemListResponse, error)
	AddItem(ctx context.Context, req *AddGradeItemRequest, caller models.Identity) (*models.GradeItem, error)
	UpdateItem(ctx context.Context, req *UpdateGradeItemRequest, caller models.Identity) (*models.GradeItem, error)
	RemoveItem(ctx context.Context, itemID uint, caller models.Identity) (*models.GradeItem, error)
	// RemoveLatestItem removes the most recently created active item the caller owns in scope.
	RemoveLatestItem(ctx context.Context, scope models.GradeScope, code models.CategoryCode, caller models.Identity) (*models.GradeItem, error)
}

type ScoreService interface {
	UpsertScores(ctx context.Context, req *SaveGradesRequest, caller models.Identity) (*SaveGradesResult, error)
}

type AggregatorService interface {
	// Recompute rebuilds one student's record in its own transaction.
	Recompute(ctx context.Context, studentID, sectionID, subjectID, periodID uint) (*models.GradeRecord, error)
	// RecomputeInTx rebuilds the record using tx; existing may be nil.
	RecomputeInTx(ctx context.Context, tx repositories.Repository, key models.GradeRecordKey, existing *models.GradeRecord) (*models.GradeRecord, error)
	GetRecord(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error)
	ListRecords(ctx context.Context, scope models.GradeScope) ([]*models.GradeRecord, error)
}

type VerificationService interface {
	Verify(ctx context.Context, req *VerificationRequest, caller models.Identity) (*models.GradeRecord, error)
	Unverify(ctx context.Context, req *VerificationRequest, caller models.Identity) (*models.GradeRecord, error)
	// EnsureUnlocked row-locks the record and returns LockedError when it is
	// verified. The record is nil when none exists yet.
	EnsureUnlocked(ctx context.Context, tx repositories.Repository, key models.GradeRecordKey) (*models.GradeRecord, error)
}

type ExportService interface {
	ExportClassRecord(ctx context.Context, scope models.GradeScope, caller models.Identity) ([]byte, error)
}

// ActivityRecorder writes activity rows and publishes grade events after commit
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

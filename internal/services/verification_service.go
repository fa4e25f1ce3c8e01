package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
)

type verificationService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	activity  ActivityRecorder
	logger    *ServiceLogger
	validator *validator.Validator
}

func NewVerificationService(repo repositories.Repository, cacheService cache.CacheService, activity ActivityRecorder, logger *slog.Logger, validator *validator.Validator) VerificationService {
	return &verificationService{
		repo:     repo,
		cache:    cacheService,
		activity: activity,
		logger: NewServiceLogger(logger, LogConfig{
			Service:   "gradebook",
			Component: "verification",
		}),
		validator: validator,
	}
}

func (s *verificationService) Verify(ctx context.Context, req *VerificationRequest, caller models.Identity) (record *models.GradeRecord, err error) {
	op := s.logger.WithOperation(ctx, "verify_grade_record", caller.UserID)
	defer func() { op.LogResult(recordID(record), "grade_record", err) }()

	return s.transition(ctx, req, caller, true)
}

func (s *verificationService) Unverify(ctx context.Context, req *VerificationRequest, caller models.Identity) (record *models.GradeRecord, err error) {
	op := s.logger.WithOperation(ctx, "unverify_grade_record", caller.UserID)
	defer func() { op.LogResult(recordID(record), "grade_record", err) }()

	return s.transition(ctx, req, caller, false)
}

// transition moves the record to verified or unverified under its row lock.
// Requesting the current state is a no-op.
func (s *verificationService) transition(ctx context.Context, req *VerificationRequest, caller models.Identity, verified bool) (*models.GradeRecord, error) {
	action := "verify"
	if !verified {
		action = "unverify"
	}

	if !caller.CanVerify() {
		return nil, NewPermissionError(caller.UserID, req.StudentID, "grade_record", action, "only advisers and admins can change verification")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	key, err := resolveRecordKey(ctx, s.repo, req.StudentID, models.GradeScope{
		SectionID: req.SectionID,
		SubjectID: req.SubjectID,
		PeriodID:  req.PeriodID,
	})
	if err != nil {
		return nil, err
	}

	var record *models.GradeRecord
	changed := false
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		current, err := tx.GradeRecord().GetForUpdate(ctx, key)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrGradeRecordNotFound
			}
			return storageErr("lock_grade_record", err)
		}

		record = current
		if current.Verified == verified {
			return nil
		}

		if verified {
			now := time.Now()
			verifier := caller.UserID
			current.Verified = true
			current.VerifiedBy = &verifier
			current.VerifiedAt = &now
		} else {
			current.Verified = false
			current.VerifiedBy = nil
			current.VerifiedAt = nil
		}

		if err := tx.GradeRecord().Save(ctx, current); err != nil {
			return storageErr("save_grade_record", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		return record, nil
	}

	// Item listings carry the scope's locked flag.
	invalidateRecords(ctx, s.cache, s.logger.logger, key.Scope())
	invalidateItems(ctx, s.cache, s.logger.logger, key.Scope())

	activityAction := models.ActivityGradeRecordVerified
	eventType := events.EventGradeRecordVerified
	state := "verified"
	if !verified {
		activityAction = models.ActivityGradeRecordReopened
		eventType = events.EventGradeRecordUnverified
		state = "unverified"
	}
	s.activity.Record(ctx, ActivityEntry{
		Action:      activityAction,
		Actor:       caller,
		TargetType:  "grade_record",
		TargetID:    &record.ID,
		Description: fmt.Sprintf("Grade record of student %d %s for school year %s", key.StudentID, state, key.SchoolYear),
		Metadata: map[string]interface{}{
			"student_id":  key.StudentID,
			"section_id":  key.SectionID,
			"subject_id":  key.SubjectID,
			"period_id":   key.PeriodID,
			"school_year": key.SchoolYear,
		},
		Event: events.NewGradeRecordEvent(eventType, record, caller.UserID),
	})

	return record, nil
}

func (s *verificationService) EnsureUnlocked(ctx context.Context, tx repositories.Repository, key models.GradeRecordKey) (*models.GradeRecord, error) {
	record, err := tx.GradeRecord().GetForUpdate(ctx, key)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, storageErr("lock_grade_record", err)
	}
	if record.Verified {
		return record, NewLockedError(key, fmt.Sprintf("grade record of student %d is verified and cannot be modified", key.StudentID))
	}
	return record, nil
}

func recordID(record *models.GradeRecord) uint {
	if record == nil {
		return 0
	}
	return record.ID
}

package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"gorm.io/datatypes"
)

type activityRecorder struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
}

func NewActivityRecorder(repo repositories.Repository, eventPublisher events.EventPublisher, logger *slog.Logger) ActivityRecorder {
	return &activityRecorder{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Record is called after commit. Failures are logged and never returned.
func (r *activityRecorder) Record(ctx context.Context, entry ActivityEntry) {
	var metadata datatypes.JSON
	if entry.Metadata != nil {
		raw, err := json.Marshal(SanitizeForLogging(entry.Metadata))
		if err != nil {
			r.logger.Warn("Failed to encode activity metadata", "action", entry.Action, "error", err)
		} else {
			metadata = datatypes.JSON(raw)
		}
	}

	log := &models.ActivityLog{
		Action:      entry.Action,
		ActorID:     entry.Actor.UserID,
		ActorRole:   entry.Actor.Role,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Description: entry.Description,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	if err := r.repo.ActivityLog().Create(ctx, log); err != nil {
		r.logger.Warn("Failed to write activity log",
			"action", entry.Action,
			"actor_id", entry.Actor.UserID,
			"error", err)
	}

	if entry.Event == nil || r.eventPublisher == nil {
		return
	}
	if err := r.eventPublisher.PublishGradeEvent(ctx, entry.Event); err != nil {
		r.logger.Warn("Failed to publish grade event",
			"event_id", entry.Event.ID,
			"event_type", entry.Event.Type,
			"error", err)
	}
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityAction string

const (
	ActivityGradeItemAdded      ActivityAction = "grade_item_added"
	ActivityGradeItemUpdated    ActivityAction = "grade_item_updated"
	ActivityGradeItemRemoved    ActivityAction = "grade_item_removed"
	ActivityGradesSaved         ActivityAction = "grades_saved"
	ActivityGradeRecordVerified ActivityAction = "grade_record_verified"
	ActivityGradeRecordReopened ActivityAction = "grade_record_unverified"
	ActivityClassRecordExported ActivityAction = "class_record_exported"
)

type ActivityLog struct {
	ID     uint           `json:"id" gorm:"primaryKey"`
	Action ActivityAction `json:"action" gorm:"not null;size:50;index"`

	// Actor information
	ActorID   string   `json:"actor_id" gorm:"not null;size:255;index"`
	ActorRole UserRole `json:"actor_role" gorm:"size:20"`

	// Target information
	TargetType string `json:"target_type" gorm:"size:50;index"` // grade_item, grade_record, section_subject
	TargetID   *uint  `json:"target_id" gorm:"index"`

	Description string         `json:"description" gorm:"not null;type:text"`
	Metadata    datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

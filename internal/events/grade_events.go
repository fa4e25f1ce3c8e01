package events

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the gradebook events consumed by reporting
type EventType string

const (
	// Grade item events
	EventGradeItemAdded   EventType = "grade_item.added"
	EventGradeItemUpdated EventType = "grade_item.updated"
	EventGradeItemRemoved EventType = "grade_item.removed"

	// Score events
	EventGradesSaved EventType = "grades.saved"

	// Verification events
	EventGradeRecordVerified   EventType = "grade_record.verified"
	EventGradeRecordUnverified EventType = "grade_record.unverified"
)

const (
	eventSource  = "gradebook-service"
	eventVersion = "1.0"
)

// GradeEvent is the envelope for every gradebook event
type GradeEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// PartitionKey keeps the events of one class record on one partition.
	PartitionKey string `json:"-"`
}

// Grade item payloads

type GradeItemEvent struct {
	ItemID       uint                `json:"item_id"`
	SectionID    uint                `json:"section_id"`
	SubjectID    uint                `json:"subject_id"`
	PeriodID     uint                `json:"period_id"`
	CategoryCode models.CategoryCode `json:"category_code"`
	Name         string              `json:"name"`
	MaxScore     float64             `json:"max_score"`
	TeacherID    string              `json:"teacher_id"`
}

type GradesSavedEvent struct {
	SectionID  uint     `json:"section_id"`
	SubjectID  uint     `json:"subject_id"`
	PeriodID   uint     `json:"period_id"`
	TeacherID  string   `json:"teacher_id"`
	StudentIDs []uint   `json:"student_ids"`
	Skipped    []string `json:"skipped,omitempty"`
}

type GradeRecordEvent struct {
	RecordID   uint    `json:"record_id"`
	StudentID  uint    `json:"student_id"`
	SectionID  uint    `json:"section_id"`
	SubjectID  uint    `json:"subject_id"`
	SchoolYear string  `json:"school_year"`
	PeriodID   uint    `json:"period_id"`
	FinalGrade float64 `json:"final_grade"`
	ActorID    string  `json:"actor_id"`
}

// Event factory functions

func newEvent(eventType EventType, scope models.GradeScope, data interface{}) *GradeEvent {
	return &GradeEvent{
		ID:           GenerateEventID(),
		Type:         eventType,
		Timestamp:    time.Now(),
		Source:       eventSource,
		Version:      eventVersion,
		Data:         data,
		PartitionKey: ScopeKey(scope),
	}
}

// ScopeKey identifies a class record: section, subject and period.
func ScopeKey(scope models.GradeScope) string {
	return fmt.Sprintf("%d:%d:%d", scope.SectionID, scope.SubjectID, scope.PeriodID)
}

// NewGradeItemEvent builds an added/updated/removed event for item
func NewGradeItemEvent(eventType EventType, item *models.GradeItem) *GradeEvent {
	return newEvent(eventType, item.Scope(), GradeItemEvent{
		ItemID:       item.ID,
		SectionID:    item.SectionID,
		SubjectID:    item.SubjectID,
		PeriodID:     item.PeriodID,
		CategoryCode: item.CategoryCode,
		Name:         item.Name,
		MaxScore:     item.MaxScore,
		TeacherID:    item.TeacherID,
	})
}

func NewGradesSavedEvent(scope models.GradeScope, teacherID string, studentIDs []uint, skipped []string) *GradeEvent {
	return newEvent(EventGradesSaved, scope, GradesSavedEvent{
		SectionID:  scope.SectionID,
		SubjectID:  scope.SubjectID,
		PeriodID:   scope.PeriodID,
		TeacherID:  teacherID,
		StudentIDs: studentIDs,
		Skipped:    skipped,
	})
}

func NewGradeRecordEvent(eventType EventType, record *models.GradeRecord, actorID string) *GradeEvent {
	return newEvent(eventType, record.Scope(), GradeRecordEvent{
		RecordID:   record.ID,
		StudentID:  record.StudentID,
		SectionID:  record.SectionID,
		SubjectID:  record.SubjectID,
		SchoolYear: record.SchoolYear,
		PeriodID:   record.PeriodID,
		FinalGrade: record.FinalGrade,
		ActorID:    actorID,
	})
}

func GenerateEventID() string {
	return uuid.NewString()
}

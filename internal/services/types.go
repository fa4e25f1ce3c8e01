package services

import (
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
)

// ===== GRADE ITEM REQUESTS =====

type AddGradeItemRequest struct {
	SectionID    uint                `json:"sectionId" validate:"required"`
	SubjectID    uint                `json:"subjectId" validate:"required"`
	PeriodID     uint                `json:"periodId" validate:"required"`
	CategoryCode models.CategoryCode `json:"categoryId" validate:"required,category_code"`
	Name         *string             `json:"name,omitempty" validate:"omitempty,item_name"`
	MaxScore     *float64            `json:"totalScore,omitempty" validate:"omitempty,max_score"`
}

func (r *AddGradeItemRequest) Scope() models.GradeScope {
	return models.GradeScope{SectionID: r.SectionID, SubjectID: r.SubjectID, PeriodID: r.PeriodID}
}

type UpdateGradeItemRequest struct {
	ItemID   uint     `json:"itemId" validate:"required"`
	Name     *string  `json:"name,omitempty"`
	MaxScore *float64 `json:"totalScore,omitempty"`
}

type GradeItemListResponse struct {
	WrittenWork         []*models.GradeItem `json:"writtenWork"`
	PerformanceTasks    []*models.GradeItem `json:"performanceTasks"`
	QuarterlyAssessment []*models.GradeItem `json:"quarterlyAssessment"`
	// Locked is true when any record in scope is verified; item removal is refused then.
	Locked bool `json:"locked"`
}

func (r *GradeItemListResponse) byCategory(code models.CategoryCode) *[]*models.GradeItem {
	switch code {
	case models.CategoryWrittenWork:
		return &r.WrittenWork
	case models.CategoryPerformanceTask:
		return &r.PerformanceTasks
	default:
		return &r.QuarterlyAssessment
	}
}

// ===== SCORE REQUESTS =====

type SaveGradesRequest struct {
	SectionID     uint                   `json:"sectionId" validate:"required"`
	SubjectID     uint                   `json:"subjectId" validate:"required"`
	PeriodID      uint                   `json:"periodId" validate:"required"`
	GradingConfig map[string]interface{} `json:"gradingConfig,omitempty"`
	Grades        []StudentGradeEntry    `json:"grades" validate:"required,min=1,dive"`
}

func (r *SaveGradesRequest) Scope() models.GradeScope {
	return models.GradeScope{SectionID: r.SectionID, SubjectID: r.SubjectID, PeriodID: r.PeriodID}
}

// StudentGradeEntry carries one student's scores. Each array is positional
// against the category's active items in listing order.
type StudentGradeEntry struct {
	StudentAccountRef   string       `json:"studentAccountRef" validate:"required"`
	WrittenWork         []ScoreValue `json:"writtenWork"`
	PerformanceTasks    []ScoreValue `json:"performanceTasks"`
	QuarterlyAssessment []ScoreValue `json:"quarterlyAssessment"`
}

func (e *StudentGradeEntry) scores(code models.CategoryCode) []ScoreValue {
	switch code {
	case models.CategoryWrittenWork:
		return e.WrittenWork
	case models.CategoryPerformanceTask:
		return e.PerformanceTasks
	default:
		return e.QuarterlyAssessment
	}
}

type SkippedStudent struct {
	StudentRef string `json:"studentRef"`
	Reason     string `json:"reason"`
}

type SaveGradesResult struct {
	Saved   []string              `json:"saved"`
	Skipped []SkippedStudent      `json:"skipped"`
	Records []*models.GradeRecord `json:"records"`
}

// ===== VERIFICATION REQUESTS =====

type VerificationRequest struct {
	StudentID uint `json:"studentId" validate:"required"`
	SectionID uint `json:"sectionId" validate:"required"`
	SubjectID uint `json:"subjectId" validate:"required"`
	PeriodID  uint `json:"periodId" validate:"required"`
}

// ===== ACTIVITY =====

// ActivityEntry is one post-commit side effect: an activity row and,
// optionally, a grade event.
type ActivityEntry struct {
	Action      models.ActivityAction
	Actor       models.Identity
	TargetType  string
	TargetID    *uint
	Description string
	Metadata    map[string]interface{}
	Event       *events.GradeEvent
}

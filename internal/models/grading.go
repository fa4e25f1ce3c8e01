package models

import (
	"time"

	"gorm.io/datatypes"
)

type CategoryCode string

const (
	CategoryWrittenWork         CategoryCode = "WW"
	CategoryPerformanceTask     CategoryCode = "PT"
	CategoryQuarterlyAssessment CategoryCode = "QA"
)

// CategoryCodes lists the grading categories in display order.
var CategoryCodes = []CategoryCode{
	CategoryWrittenWork,
	CategoryPerformanceTask,
	CategoryQuarterlyAssessment,
}

// CategoryDefinition is the canonical name and weight of a category.
type CategoryDefinition struct {
	Code   CategoryCode
	Name   string
	Weight float64
}

// CanonicalCategories holds the fixed categories. Weights sum to 1.0.
var CanonicalCategories = map[CategoryCode]CategoryDefinition{
	CategoryWrittenWork:         {Code: CategoryWrittenWork, Name: "Written Work", Weight: 0.30},
	CategoryPerformanceTask:     {Code: CategoryPerformanceTask, Name: "Performance Task", Weight: 0.50},
	CategoryQuarterlyAssessment: {Code: CategoryQuarterlyAssessment, Name: "Quarterly Assessment", Weight: 0.20},
}

func (c CategoryCode) IsValid() bool {
	_, ok := CanonicalCategories[c]
	return ok
}

type GradeCategory struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	Code      CategoryCode `json:"code" gorm:"not null;size:2;uniqueIndex"`
	Name      string       `json:"name" gorm:"not null;size:100"`
	Weight    float64      `json:"weight" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at"`
}

func (GradeCategory) TableName() string {
	return "grade_categories"
}

type GradeItemStatus string

const (
	GradeItemActive  GradeItemStatus = "active"
	GradeItemRemoved GradeItemStatus = "removed"
)

const (
	DefaultMaxScore = 100.0
	MaxAllowedScore = 1000.0
)

type GradeItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	SectionID    uint            `json:"section_id" gorm:"not null;index:idx_grade_items_scope"`
	SubjectID    uint            `json:"subject_id" gorm:"not null;index:idx_grade_items_scope"`
	PeriodID     uint            `json:"period_id" gorm:"not null;index:idx_grade_items_scope"`
	CategoryCode CategoryCode    `json:"category_code" gorm:"not null;size:2;index:idx_grade_items_scope"`
	TeacherID    string          `json:"teacher_id" gorm:"not null;size:255;index"`
	Name         string          `json:"name" gorm:"not null;size:100"`
	Sequence     int             `json:"sequence" gorm:"not null"`
	MaxScore     float64         `json:"max_score" gorm:"not null;default:100"`
	Status       GradeItemStatus `json:"status" gorm:"not null;size:20;default:active;index"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (GradeItem) TableName() string {
	return "grade_items"
}

type StudentScore struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	StudentID   uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_student_scores_identity"`
	GradeItemID uint      `json:"grade_item_id" gorm:"not null;uniqueIndex:idx_student_scores_identity;index"`
	Score       float64   `json:"score" gorm:"not null"`
	GradedBy    string    `json:"graded_by" gorm:"not null;size:255"`
	GradedAt    time.Time `json:"graded_at" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Scope is the class record the item belongs to.
func (i *GradeItem) Scope() GradeScope {
	return GradeScope{SectionID: i.SectionID, SubjectID: i.SubjectID, PeriodID: i.PeriodID}
}

func (StudentScore) TableName() string {
	return "student_scores"
}

// GradeRecord is the derived per-student aggregate for one subject and period.
type GradeRecord struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	StudentID  uint   `json:"student_id" gorm:"not null;uniqueIndex:idx_grade_records_key"`
	SectionID  uint   `json:"section_id" gorm:"not null;uniqueIndex:idx_grade_records_key;index:idx_grade_records_scope"`
	SubjectID  uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_grade_records_key;index:idx_grade_records_scope"`
	SchoolYear string `json:"school_year" gorm:"not null;size:20;uniqueIndex:idx_grade_records_key"`
	PeriodID   uint   `json:"period_id" gorm:"not null;uniqueIndex:idx_grade_records_key;index:idx_grade_records_scope"`

	WrittenWorkAverage         float64 `json:"written_work_average"`
	PerformanceTaskAverage     float64 `json:"performance_task_average"`
	QuarterlyAssessmentAverage float64 `json:"quarterly_assessment_average"`
	FinalGrade                 float64 `json:"final_grade"`

	Weights datatypes.JSON `json:"weights" gorm:"type:jsonb"` // map[CategoryCode]float64

	// Verification block
	Verified   bool       `json:"verified" gorm:"not null;default:false"`
	VerifiedBy *string    `json:"verified_by" gorm:"size:255"`
	VerifiedAt *time.Time `json:"verified_at"`

	ComputedAt time.Time `json:"computed_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (GradeRecord) TableName() string {
	return "grade_records"
}

func (r *GradeRecord) Scope() GradeScope {
	return GradeScope{SectionID: r.SectionID, SubjectID: r.SubjectID, PeriodID: r.PeriodID}
}

// Average returns the stored average for a category.
func (r *GradeRecord) Average(code CategoryCode) float64 {
	switch code {
	case CategoryWrittenWork:
		return r.WrittenWorkAverage
	case CategoryPerformanceTask:
		return r.PerformanceTaskAverage
	case CategoryQuarterlyAssessment:
		return r.QuarterlyAssessmentAverage
	}
	return 0
}

// GradeRecordKey identifies one GradeRecord and the verification gate guarding it.
type GradeRecordKey struct {
	StudentID  uint   `json:"student_id"`
	SectionID  uint   `json:"section_id"`
	SubjectID  uint   `json:"subject_id"`
	SchoolYear string `json:"school_year"`
	PeriodID   uint   `json:"period_id"`
}

func (k GradeRecordKey) Scope() GradeScope {
	return GradeScope{SectionID: k.SectionID, SubjectID: k.SubjectID, PeriodID: k.PeriodID}
}

// GradeScope is the (section, subject, period) triple items and records live in.
type GradeScope struct {
	SectionID uint `json:"section_id" form:"section_id" validate:"required"`
	SubjectID uint `json:"subject_id" form:"subject_id" validate:"required"`
	PeriodID  uint `json:"period_id" form:"period_id" validate:"required"`
}

type GradingPeriod struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SchoolYear string    `json:"school_year" gorm:"not null;size:20;index"`
	Name       string    `json:"name" gorm:"not null;size:50"`
	CreatedAt  time.Time `json:"created_at"`
}

func (GradingPeriod) TableName() string {
	return "grading_periods"
}

package postgres

import (
	"context"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GradeRecordPostgreSQL struct {
	db *gorm.DB
}

func (g *GradeRecordPostgreSQL) byKey(db *gorm.DB, key models.GradeRecordKey) *gorm.DB {
	return db.Where("student_id = ? AND section_id = ? AND subject_id = ? AND school_year = ? AND period_id = ?",
		key.StudentID, key.SectionID, key.SubjectID, key.SchoolYear, key.PeriodID)
}

// GetForUpdate loads the record with SELECT ... FOR UPDATE
func (g *GradeRecordPostgreSQL) GetForUpdate(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error) {
	var record models.GradeRecord
	db := g.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	if err := g.byKey(db, key).First(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (g *GradeRecordPostgreSQL) Get(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error) {
	var record models.GradeRecord
	if err := g.byKey(g.db.WithContext(ctx), key).First(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

// Save upserts the record on its natural key
func (g *GradeRecordPostgreSQL) Save(ctx context.Context, record *models.GradeRecord) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"},
				{Name: "section_id"},
				{Name: "subject_id"},
				{Name: "school_year"},
				{Name: "period_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"written_work_average",
				"performance_task_average",
				"quarterly_assessment_average",
				"final_grade",
				"weights",
				"verified",
				"verified_by",
				"verified_at",
				"computed_at",
				"updated_at",
			}),
		}).
		Create(record).Error
}

func (g *GradeRecordPostgreSQL) ListByScope(ctx context.Context, scope models.GradeScope) ([]*models.GradeRecord, error) {
	var records []*models.GradeRecord
	err := g.db.WithContext(ctx).
		Where("section_id = ? AND subject_id = ? AND period_id = ?", scope.SectionID, scope.SubjectID, scope.PeriodID).
		Order("student_id ASC").
		Find(&records).Error
	return records, err
}

func (g *GradeRecordPostgreSQL) HasVerified(ctx context.Context, scope models.GradeScope) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.GradeRecord{}).
		Where("section_id = ? AND subject_id = ? AND period_id = ? AND verified = ?",
			scope.SectionID, scope.SubjectID, scope.PeriodID, true).
		Count(&count).Error
	return count > 0, err
}

type StudentPostgreSQL struct {
	db *gorm.DB
}

func (s *StudentPostgreSQL) ResolveAccountNumber(ctx context.Context, accountNumber string) (uint, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Select("id").
		Where("account_number = ? AND role = ? AND is_active = ?", accountNumber, models.RoleStudent, true).
		Take(&account).Error
	if err != nil {
		return 0, notFound(err)
	}
	return account.ID, nil
}

func (s *StudentPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Account, error) {
	var accounts []*models.Account
	if len(ids) == 0 {
		return accounts, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("full_name ASC").Find(&accounts).Error
	return accounts, err
}

type PeriodPostgreSQL struct {
	db *gorm.DB
}

func (p *PeriodPostgreSQL) GetByID(ctx context.Context, id uint) (*models.GradingPeriod, error) {
	var period models.GradingPeriod
	if err := p.db.WithContext(ctx).First(&period, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &period, nil
}

type ActivityLogPostgreSQL struct {
	db *gorm.DB
}

func (a *ActivityLogPostgreSQL) Create(ctx context.Context, entry *models.ActivityLog) error {
	return a.db.WithContext(ctx).Create(entry).Error
}

var _ repositories.Repository = (*Repository)(nil)

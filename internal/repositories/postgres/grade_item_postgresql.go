package postgres

import (
	"context"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryPostgreSQL struct {
	db *gorm.DB
}

// EnsureExists inserts the category unless its code already exists
func (c *CategoryPostgreSQL) EnsureExists(ctx context.Context, category *models.GradeCategory) error {
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(category).Error
}

func (c *CategoryPostgreSQL) List(ctx context.Context) ([]*models.GradeCategory, error) {
	var categories []*models.GradeCategory
	if err := c.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

type GradeItemPostgreSQL struct {
	db *gorm.DB
}

func (g *GradeItemPostgreSQL) Create(ctx context.Context, item *models.GradeItem) error {
	return g.db.WithContext(ctx).Create(item).Error
}

func (g *GradeItemPostgreSQL) GetByID(ctx context.Context, id uint) (*models.GradeItem, error) {
	var item models.GradeItem
	if err := g.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (g *GradeItemPostgreSQL) Update(ctx context.Context, item *models.GradeItem) error {
	return g.db.WithContext(ctx).
		Model(&models.GradeItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"name":       item.Name,
			"max_score":  item.MaxScore,
			"updated_at": item.UpdatedAt,
		}).Error
}

func (g *GradeItemPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := g.db.WithContext(ctx).Delete(&models.GradeItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// ListActive retrieves active items in listing order
func (g *GradeItemPostgreSQL) ListActive(ctx context.Context, filters repositories.GradeItemFilters) ([]*models.GradeItem, error) {
	query := g.db.WithContext(ctx).
		Where("section_id = ? AND subject_id = ? AND period_id = ? AND status = ?",
			filters.SectionID, filters.SubjectID, filters.PeriodID, models.GradeItemActive)

	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.CategoryCode != nil {
		query = query.Where("category_code = ?", *filters.CategoryCode)
	}

	var items []*models.GradeItem
	if err := query.Order("sequence ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (g *GradeItemPostgreSQL) CountActive(ctx context.Context, scope repositories.ItemScope) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.GradeItem{}).
		Where("section_id = ? AND subject_id = ? AND period_id = ? AND category_code = ? AND status = ?",
			scope.SectionID, scope.SubjectID, scope.PeriodID, scope.CategoryCode, models.GradeItemActive).
		Count(&count).Error
	return count, err
}

func (g *GradeItemPostgreSQL) LatestActive(ctx context.Context, scope repositories.ItemScope, teacherID *string) (*models.GradeItem, error) {
	query := g.db.WithContext(ctx).
		Where("section_id = ? AND subject_id = ? AND period_id = ? AND category_code = ? AND status = ?",
			scope.SectionID, scope.SubjectID, scope.PeriodID, scope.CategoryCode, models.GradeItemActive)
	if teacherID != nil {
		query = query.Where("teacher_id = ?", *teacherID)
	}

	var item models.GradeItem
	if err := query.Order("created_at DESC, id DESC").First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

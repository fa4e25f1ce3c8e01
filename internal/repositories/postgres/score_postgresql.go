package postgres

import (
	"context"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScorePostgreSQL struct {
	db *gorm.DB
}

// Upsert writes the score keyed by (student_id, grade_item_id)
func (s *ScorePostgreSQL) Upsert(ctx context.Context, score *models.StudentScore) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "grade_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "graded_by", "graded_at", "updated_at",
			}),
		}).
		Create(score).Error
}

func (s *ScorePostgreSQL) ListByStudent(ctx context.Context, studentID uint, itemIDs []uint) ([]*models.StudentScore, error) {
	var scores []*models.StudentScore
	if len(itemIDs) == 0 {
		return scores, nil
	}
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND grade_item_id IN ?", studentID, itemIDs).
		Find(&scores).Error
	return scores, err
}

func (s *ScorePostgreSQL) ListByItems(ctx context.Context, itemIDs []uint) ([]*models.StudentScore, error) {
	var scores []*models.StudentScore
	if len(itemIDs) == 0 {
		return scores, nil
	}
	err := s.db.WithContext(ctx).
		Where("grade_item_id IN ?", itemIDs).
		Order("student_id ASC, grade_item_id ASC").
		Find(&scores).Error
	return scores, err
}

func (s *ScorePostgreSQL) DeleteByItem(ctx context.Context, itemID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("grade_item_id = ?", itemID).
		Delete(&models.StudentScore{})
	return result.RowsAffected, result.Error
}

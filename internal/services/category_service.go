package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
)

type categoryService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewCategoryService(repo repositories.Repository, logger *slog.Logger) CategoryService {
	return &categoryService{
		repo:   repo,
		logger: logger,
	}
}

// EnsureCategories inserts any missing canonical category and re-reads the
// table so concurrent callers converge on the same rows.
func (s *categoryService) EnsureCategories(ctx context.Context, repo repositories.Repository) (map[models.CategoryCode]*models.GradeCategory, error) {
	if repo == nil {
		repo = s.repo
	}

	for _, code := range models.CategoryCodes {
		def := models.CanonicalCategories[code]
		category := &models.GradeCategory{
			Code:   def.Code,
			Name:   def.Name,
			Weight: def.Weight,
		}
		if err := repo.Category().EnsureExists(ctx, category); err != nil {
			return nil, storageErr("ensure_categories", err)
		}
	}

	rows, err := repo.Category().List(ctx)
	if err != nil {
		return nil, storageErr("list_categories", err)
	}

	categories := make(map[models.CategoryCode]*models.GradeCategory, len(rows))
	for _, row := range rows {
		categories[row.Code] = row
	}
	for _, code := range models.CategoryCodes {
		if _, ok := categories[code]; !ok {
			s.logger.Error("Category missing after ensure", "code", code)
			return nil, ErrCategoryNotFound
		}
	}
	return categories, nil
}

func (s *categoryService) List(ctx context.Context) ([]*models.GradeCategory, error) {
	categories, err := s.EnsureCategories(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	list := make([]*models.GradeCategory, 0, len(categories))
	for _, code := range models.CategoryCodes {
		list = append(list, categories[code])
	}
	return list, nil
}

// categoryWeights maps each code to its registry weight
func categoryWeights(categories map[models.CategoryCode]*models.GradeCategory) map[models.CategoryCode]float64 {
	weights := make(map[models.CategoryCode]float64, len(categories))
	for code, category := range categories {
		weights[code] = category.Weight
	}
	return weights
}

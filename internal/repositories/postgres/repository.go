package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the gorm-backed repositories.Repository. When db is a
// transaction handle every sub-repository shares it.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the gradebook tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.GradeCategory{},
		&models.GradeItem{},
		&models.StudentScore{},
		&models.GradeRecord{},
		&models.GradingPeriod{},
		&models.Account{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate gradebook tables: %w", err)
	}
	return nil
}

func (r *Repository) Category() repositories.CategoryRepository {
	return &CategoryPostgreSQL{db: r.db}
}

func (r *Repository) GradeItem() repositories.GradeItemRepository {
	return &GradeItemPostgreSQL{db: r.db}
}

func (r *Repository) Score() repositories.ScoreRepository {
	return &ScorePostgreSQL{db: r.db}
}

func (r *Repository) GradeRecord() repositories.GradeRecordRepository {
	return &GradeRecordPostgreSQL{db: r.db}
}

func (r *Repository) Student() repositories.StudentRepository {
	return &StudentPostgreSQL{db: r.db}
}

func (r *Repository) Period() repositories.PeriodRepository {
	return &PeriodPostgreSQL{db: r.db}
}

func (r *Repository) ActivityLog() repositories.ActivityLogRepository {
	return &ActivityLogPostgreSQL{db: r.db}
}

// WithTransaction runs fn inside db.Transaction. Nested calls reuse gorm's
// savepoint handling.
func (r *Repository) WithTransaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// LockItemScope takes a transaction-scoped advisory lock on the scope key.
func (r *Repository) LockItemScope(ctx context.Context, scope repositories.ItemScope) error {
	if err := r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", scope.LockKey()).Error; err != nil {
		return fmt.Errorf("failed to lock item scope %s: %w", scope.LockKey(), err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}

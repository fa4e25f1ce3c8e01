package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
)

type categoryRepository struct{ r *Repository }

func (c *categoryRepository) EnsureExists(ctx context.Context, category *models.GradeCategory) error {
	return c.r.run(func(db *tables) error {
		if existing, ok := db.categories[category.Code]; ok {
			category.ID = existing.ID
			return nil
		}
		category.ID = db.nextID()
		if category.CreatedAt.IsZero() {
			category.CreatedAt = time.Now()
		}
		db.categories[category.Code] = *category
		return nil
	})
}

func (c *categoryRepository) List(ctx context.Context) ([]*models.GradeCategory, error) {
	var categories []*models.GradeCategory
	err := c.r.run(func(db *tables) error {
		for _, cat := range db.categories {
			cat := cat
			categories = append(categories, &cat)
		}
		return nil
	})
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, err
}

type gradeItemRepository struct{ r *Repository }

func (g *gradeItemRepository) Create(ctx context.Context, item *models.GradeItem) error {
	return g.r.run(func(db *tables) error {
		now := time.Now()
		item.ID = db.nextID()
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = now
		}
		if item.Status == "" {
			item.Status = models.GradeItemActive
		}
		db.items[item.ID] = *item
		return nil
	})
}

func (g *gradeItemRepository) GetByID(ctx context.Context, id uint) (*models.GradeItem, error) {
	var item models.GradeItem
	err := g.r.run(func(db *tables) error {
		found, ok := db.items[id]
		if !ok {
			return repositories.ErrNotFound
		}
		item = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (g *gradeItemRepository) Update(ctx context.Context, item *models.GradeItem) error {
	return g.r.run(func(db *tables) error {
		existing, ok := db.items[item.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		existing.Name = item.Name
		existing.MaxScore = item.MaxScore
		existing.UpdatedAt = item.UpdatedAt
		db.items[item.ID] = existing
		return nil
	})
}

func (g *gradeItemRepository) Delete(ctx context.Context, id uint) error {
	return g.r.run(func(db *tables) error {
		if _, ok := db.items[id]; !ok {
			return repositories.ErrNotFound
		}
		delete(db.items, id)
		return nil
	})
}

func (g *gradeItemRepository) ListActive(ctx context.Context, filters repositories.GradeItemFilters) ([]*models.GradeItem, error) {
	var items []*models.GradeItem
	err := g.r.run(func(db *tables) error {
		for _, item := range db.items {
			if item.SectionID != filters.SectionID || item.SubjectID != filters.SubjectID ||
				item.PeriodID != filters.PeriodID || item.Status != models.GradeItemActive {
				continue
			}
			if filters.TeacherID != nil && item.TeacherID != *filters.TeacherID {
				continue
			}
			if filters.CategoryCode != nil && item.CategoryCode != *filters.CategoryCode {
				continue
			}
			item := item
			items = append(items, &item)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].Sequence != items[j].Sequence {
			return items[i].Sequence < items[j].Sequence
		}
		return items[i].ID < items[j].ID
	})
	return items, err
}

func (g *gradeItemRepository) CountActive(ctx context.Context, scope repositories.ItemScope) (int64, error) {
	var count int64
	err := g.r.run(func(db *tables) error {
		for _, item := range db.items {
			if inScope(item, scope) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (g *gradeItemRepository) LatestActive(ctx context.Context, scope repositories.ItemScope, teacherID *string) (*models.GradeItem, error) {
	var latest *models.GradeItem
	err := g.r.run(func(db *tables) error {
		for _, item := range db.items {
			if !inScope(item, scope) {
				continue
			}
			if teacherID != nil && item.TeacherID != *teacherID {
				continue
			}
			if latest == nil || item.CreatedAt.After(latest.CreatedAt) ||
				(item.CreatedAt.Equal(latest.CreatedAt) && item.ID > latest.ID) {
				item := item
				latest = &item
			}
		}
		if latest == nil {
			return repositories.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func inScope(item models.GradeItem, scope repositories.ItemScope) bool {
	return item.SectionID == scope.SectionID &&
		item.SubjectID == scope.SubjectID &&
		item.PeriodID == scope.PeriodID &&
		item.CategoryCode == scope.CategoryCode &&
		item.Status == models.GradeItemActive
}

type scoreRepository struct{ r *Repository }

func (s *scoreRepository) Upsert(ctx context.Context, score *models.StudentScore) error {
	return s.r.run(func(db *tables) error {
		key := scoreKey{studentID: score.StudentID, itemID: score.GradeItemID}
		now := time.Now()
		if existing, ok := db.scores[key]; ok {
			existing.Score = score.Score
			existing.GradedBy = score.GradedBy
			existing.GradedAt = score.GradedAt
			existing.UpdatedAt = now
			db.scores[key] = existing
			*score = existing
			return nil
		}
		score.ID = db.nextID()
		score.CreatedAt = now
		score.UpdatedAt = now
		db.scores[key] = *score
		return nil
	})
}

func (s *scoreRepository) ListByStudent(ctx context.Context, studentID uint, itemIDs []uint) ([]*models.StudentScore, error) {
	scores := []*models.StudentScore{}
	err := s.r.run(func(db *tables) error {
		for _, itemID := range itemIDs {
			if score, ok := db.scores[scoreKey{studentID: studentID, itemID: itemID}]; ok {
				score := score
				scores = append(scores, &score)
			}
		}
		return nil
	})
	return scores, err
}

func (s *scoreRepository) ListByItems(ctx context.Context, itemIDs []uint) ([]*models.StudentScore, error) {
	wanted := make(map[uint]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	scores := []*models.StudentScore{}
	err := s.r.run(func(db *tables) error {
		for _, score := range db.scores {
			if wanted[score.GradeItemID] {
				score := score
				scores = append(scores, &score)
			}
		}
		return nil
	})
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].StudentID != scores[j].StudentID {
			return scores[i].StudentID < scores[j].StudentID
		}
		return scores[i].GradeItemID < scores[j].GradeItemID
	})
	return scores, err
}

func (s *scoreRepository) DeleteByItem(ctx context.Context, itemID uint) (int64, error) {
	var deleted int64
	err := s.r.run(func(db *tables) error {
		for key := range db.scores {
			if key.itemID == itemID {
				delete(db.scores, key)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

type gradeRecordRepository struct{ r *Repository }

func recordKey(record *models.GradeRecord) models.GradeRecordKey {
	return models.GradeRecordKey{
		StudentID:  record.StudentID,
		SectionID:  record.SectionID,
		SubjectID:  record.SubjectID,
		SchoolYear: record.SchoolYear,
		PeriodID:   record.PeriodID,
	}
}

// GetForUpdate is Get: the transaction already holds the store mutex.
func (g *gradeRecordRepository) GetForUpdate(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error) {
	return g.Get(ctx, key)
}

func (g *gradeRecordRepository) Get(ctx context.Context, key models.GradeRecordKey) (*models.GradeRecord, error) {
	var record models.GradeRecord
	err := g.r.run(func(db *tables) error {
		found, ok := db.records[key]
		if !ok {
			return repositories.ErrNotFound
		}
		record = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *gradeRecordRepository) Save(ctx context.Context, record *models.GradeRecord) error {
	return g.r.run(func(db *tables) error {
		key := recordKey(record)
		now := time.Now()
		if existing, ok := db.records[key]; ok {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
		} else {
			record.ID = db.nextID()
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		db.records[key] = *record
		return nil
	})
}

func (g *gradeRecordRepository) ListByScope(ctx context.Context, scope models.GradeScope) ([]*models.GradeRecord, error) {
	records := []*models.GradeRecord{}
	err := g.r.run(func(db *tables) error {
		for _, record := range db.records {
			if record.SectionID == scope.SectionID && record.SubjectID == scope.SubjectID && record.PeriodID == scope.PeriodID {
				record := record
				records = append(records, &record)
			}
		}
		return nil
	})
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, err
}

func (g *gradeRecordRepository) HasVerified(ctx context.Context, scope models.GradeScope) (bool, error) {
	verified := false
	err := g.r.run(func(db *tables) error {
		for _, record := range db.records {
			if record.Verified && record.SectionID == scope.SectionID &&
				record.SubjectID == scope.SubjectID && record.PeriodID == scope.PeriodID {
				verified = true
				return nil
			}
		}
		return nil
	})
	return verified, err
}

type studentRepository struct{ r *Repository }

func (s *studentRepository) ResolveAccountNumber(ctx context.Context, accountNumber string) (uint, error) {
	var id uint
	err := s.r.run(func(db *tables) error {
		for _, account := range db.accounts {
			if account.AccountNumber == accountNumber && account.Role == models.RoleStudent && account.IsActive {
				id = account.ID
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return id, err
}

func (s *studentRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.Account, error) {
	accounts := []*models.Account{}
	err := s.r.run(func(db *tables) error {
		for _, id := range ids {
			if account, ok := db.accounts[id]; ok {
				account := account
				accounts = append(accounts, &account)
			}
		}
		return nil
	})
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].FullName < accounts[j].FullName })
	return accounts, err
}

type periodRepository struct{ r *Repository }

func (p *periodRepository) GetByID(ctx context.Context, id uint) (*models.GradingPeriod, error) {
	var period models.GradingPeriod
	err := p.r.run(func(db *tables) error {
		found, ok := db.periods[id]
		if !ok {
			return repositories.ErrNotFound
		}
		period = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &period, nil
}

type activityLogRepository struct{ r *Repository }

func (a *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return a.r.run(func(db *tables) error {
		entry.ID = db.nextID()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		db.activity = append(db.activity, *entry)
		return nil
	})
}

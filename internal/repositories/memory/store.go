// Package memory is an in-process repositories.Repository. It backs
// STORAGE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
)

type tables struct {
	categories map[models.CategoryCode]models.GradeCategory
	items      map[uint]models.GradeItem
	scores     map[scoreKey]models.StudentScore
	records    map[models.GradeRecordKey]models.GradeRecord
	accounts   map[uint]models.Account
	periods    map[uint]models.GradingPeriod
	activity   []models.ActivityLog

	seq uint
}

type scoreKey struct {
	studentID uint
	itemID    uint
}

func newTables() *tables {
	return &tables{
		categories: map[models.CategoryCode]models.GradeCategory{},
		items:      map[uint]models.GradeItem{},
		scores:     map[scoreKey]models.StudentScore{},
		records:    map[models.GradeRecordKey]models.GradeRecord{},
		accounts:   map[uint]models.Account{},
		periods:    map[uint]models.GradingPeriod{},
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		categories: make(map[models.CategoryCode]models.GradeCategory, len(t.categories)),
		items:      make(map[uint]models.GradeItem, len(t.items)),
		scores:     make(map[scoreKey]models.StudentScore, len(t.scores)),
		records:    make(map[models.GradeRecordKey]models.GradeRecord, len(t.records)),
		accounts:   make(map[uint]models.Account, len(t.accounts)),
		periods:    make(map[uint]models.GradingPeriod, len(t.periods)),
		activity:   append([]models.ActivityLog(nil), t.activity...),
		seq:        t.seq,
	}
	for k, v := range t.categories {
		c.categories[k] = v
	}
	for k, v := range t.items {
		c.items[k] = v
	}
	for k, v := range t.scores {
		c.scores[k] = v
	}
	for k, v := range t.records {
		c.records[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.periods {
		c.periods[k] = v
	}
	return c
}

func (t *tables) nextID() uint {
	t.seq++
	return t.seq
}

// Store owns the tables and the single mutex guarding them. A transaction
// holds the mutex for its whole duration, so transactions are serial.
type Store struct {
	mutex sync.Mutex
	db    *tables
}

func NewStore() *Store {
	return &Store{db: newTables()}
}

// NewRepository returns the non-transactional view of the store
func NewRepository(store *Store) repositories.Repository {
	return &Repository{store: store}
}

// AddStudent seeds an active student account and returns its id
func (s *Store) AddStudent(accountNumber, fullName string) uint {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	id := s.db.nextID()
	s.db.accounts[id] = models.Account{
		ID:            id,
		AccountNumber: accountNumber,
		Role:          models.RoleStudent,
		FullName:      fullName,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return id
}

// AddPeriod seeds a grading period and returns its id
func (s *Store) AddPeriod(schoolYear, name string) uint {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.db.nextID()
	s.db.periods[id] = models.GradingPeriod{
		ID:         id,
		SchoolYear: schoolYear,
		Name:       name,
		CreatedAt:  time.Now(),
	}
	return id
}

// ActivityLogs returns a copy of the recorded activity entries
func (s *Store) ActivityLogs() []models.ActivityLog {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.ActivityLog(nil), s.db.activity...)
}

// Repository is either the store's outer view, which locks per call, or a
// transaction view, which runs under the lock its WithTransaction took.
type Repository struct {
	store *Store
	inTx  bool
}

func (r *Repository) run(fn func(db *tables) error) error {
	if !r.inTx {
		r.store.mutex.Lock()
		defer r.store.mutex.Unlock()
	}
	return fn(r.store.db)
}

func (r *Repository) Category() repositories.CategoryRepository       { return &categoryRepository{r} }
func (r *Repository) GradeItem() repositories.GradeItemRepository     { return &gradeItemRepository{r} }
func (r *Repository) Score() repositories.ScoreRepository             { return &scoreRepository{r} }
func (r *Repository) GradeRecord() repositories.GradeRecordRepository { return &gradeRecordRepository{r} }
func (r *Repository) Student() repositories.StudentRepository         { return &studentRepository{r} }
func (r *Repository) Period() repositories.PeriodRepository           { return &periodRepository{r} }
func (r *Repository) ActivityLog() repositories.ActivityLogRepository { return &activityLogRepository{r} }

// WithTransaction snapshots the tables, runs fn and restores the snapshot
// when fn fails or panics.
func (r *Repository) WithTransaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mutex.Lock()
	defer r.store.mutex.Unlock()

	snapshot := r.store.db.clone()
	committed := false
	defer func() {
		if !committed {
			r.store.db = snapshot
		}
	}()

	if err := fn(&Repository{store: r.store, inTx: true}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LockItemScope is satisfied by the store mutex the transaction already holds.
func (r *Repository) LockItemScope(ctx context.Context, scope repositories.ItemScope) error {
	return ctx.Err()
}

var _ repositories.Repository = (*Repository)(nil)

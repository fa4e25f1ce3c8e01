package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories/memory"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/stretchr/testify/require"
)

const (
	testSectionID = 11
	testSubjectID = 21
	teacherA      = "teacher-a"
	teacherB      = "teacher-b"
)

var (
	asTeacherA = models.Identity{UserID: teacherA, Role: models.RoleTeacher}
	asTeacherB = models.Identity{UserID: teacherB, Role: models.RoleTeacher}
	asAdviser  = models.Identity{UserID: "adviser-1", Role: models.RoleAdviser}
)

type testEnv struct {
	ctx       context.Context
	store     *memory.Store
	publisher *events.MockEventPublisher
	services  *ServiceManager
	periodID  uint
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, cache.NewNoopCache())
}

func newTestEnvWithCache(t *testing.T, cacheService cache.CacheService) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	publisher := events.NewMockEventPublisher(logger)

	return &testEnv{
		ctx:       context.Background(),
		store:     store,
		publisher: publisher,
		periodID:  store.AddPeriod("2025-2026", "First Quarter"),
		services: NewServiceManager(ServiceManagerConfig{
			Repo:      memory.NewRepository(store),
			Cache:     cacheService,
			CacheTTL:  time.Minute,
			Publisher: publisher,
			Logger:    logger,
			Validator: validator.New(),
		}),
	}
}

func (e *testEnv) scope() models.GradeScope {
	return models.GradeScope{SectionID: testSectionID, SubjectID: testSubjectID, PeriodID: e.periodID}
}

func (e *testEnv) addItem(t *testing.T, caller models.Identity, code models.CategoryCode, maxScore *float64) *models.GradeItem {
	t.Helper()
	item, err := e.services.GradeItems.AddItem(e.ctx, &AddGradeItemRequest{
		SectionID:    testSectionID,
		SubjectID:    testSubjectID,
		PeriodID:     e.periodID,
		CategoryCode: code,
		MaxScore:     maxScore,
	}, caller)
	require.NoError(t, err)
	return item
}

func (e *testEnv) saveGrades(caller models.Identity, entries ...StudentGradeEntry) (*SaveGradesResult, error) {
	return e.services.Scores.UpsertScores(e.ctx, &SaveGradesRequest{
		SectionID: testSectionID,
		SubjectID: testSubjectID,
		PeriodID:  e.periodID,
		Grades:    entries,
	}, caller)
}

func (e *testEnv) verificationRequest(studentID uint) *VerificationRequest {
	return &VerificationRequest{
		StudentID: studentID,
		SectionID: testSectionID,
		SubjectID: testSubjectID,
		PeriodID:  e.periodID,
	}
}

func (e *testEnv) record(t *testing.T, studentID uint) *models.GradeRecord {
	t.Helper()
	record, err := e.services.Aggregator.GetRecord(e.ctx, models.GradeRecordKey{
		StudentID:  studentID,
		SectionID:  testSectionID,
		SubjectID:  testSubjectID,
		SchoolYear: "2025-2026",
		PeriodID:   e.periodID,
	})
	require.NoError(t, err)
	return record
}

func scores(values ...float64) []ScoreValue {
	out := make([]ScoreValue, len(values))
	for i, v := range values {
		out[i] = Score(v)
	}
	return out
}

func itemNames(items []*models.GradeItem) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

// mapCache is an in-process CacheService for exercising invalidation.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	raw, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories/memory"
	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *gin.Engine
	store    *memory.Store
	periodID uint
}

func newTestServer(t *testing.T, parser TokenParser) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	v := validator.New()
	manager := services.NewServiceManager(services.ServiceManagerConfig{
		Repo:      memory.NewRepository(store),
		Cache:     cache.NewNoopCache(),
		CacheTTL:  time.Minute,
		Publisher: events.NewMockEventPublisher(logger),
		Logger:    logger,
		Validator: v,
	})

	hm := NewHandlerManager(manager, v, utils.NewSlogLogger(logger))
	return &testServer{
		router:   hm.NewRouter(parser),
		store:    store,
		periodID: store.AddPeriod("2025-2026", "First Quarter"),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, userID string, role models.UserRole) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
		req.Header.Set(HeaderUserRole, string(role))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) query() string {
	return fmt.Sprintf("section_id=1&subject_id=2&period_id=%d", s.periodID)
}

func (s *testServer) addItem(t *testing.T, code models.CategoryCode) models.GradeItem {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/grade-items", map[string]interface{}{
		"action":     "add",
		"sectionId":  1,
		"subjectId":  2,
		"periodId":   s.periodID,
		"categoryId": code,
	}, "teacher-1", models.RoleTeacher)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item models.GradeItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	return item
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("MissingIdentity", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := s.do(t, http.MethodGet, "/api/v1/grade-items?"+s.query(), nil, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("StudentsAreRejected", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := s.do(t, http.MethodGet, "/api/v1/grade-items?"+s.query(), nil, "student-1", models.RoleStudent)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("BearerToken", func(t *testing.T) {
		parser := tokenParserFunc(func(token string) (models.Identity, error) {
			if token != "good-token" {
				return models.Identity{}, errors.New("bad signature")
			}
			return models.Identity{UserID: "teacher-9", Role: models.RoleTeacher}, nil
		})
		s := newTestServer(t, parser)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/grade-items?"+s.query(), nil)
		req.Header.Set("Authorization", "Bearer good-token")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req = httptest.NewRequest(http.MethodGet, "/api/v1/grade-items?"+s.query(), nil)
		req.Header.Set("Authorization", "Bearer forged")
		w = httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		// Dev headers are ignored once a parser is configured.
		w = s.do(t, http.MethodGet, "/api/v1/grade-items?"+s.query(), nil, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type tokenParserFunc func(token string) (models.Identity, error)

func (f tokenParserFunc) ParseToken(token string) (models.Identity, error) { return f(token) }

func TestGradeItemRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	first := s.addItem(t, models.CategoryWrittenWork)
	second := s.addItem(t, models.CategoryWrittenWork)
	assert.Equal(t, "WW 1", first.Name)
	assert.Equal(t, "WW 2", second.Name)

	t.Run("List", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/grade-items?"+s.query(), nil, "teacher-1", models.RoleTeacher)
		require.Equal(t, http.StatusOK, w.Code)

		var list services.GradeItemListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.Len(t, list.WrittenWork, 2)
		assert.Empty(t, list.PerformanceTasks)
	})

	t.Run("InvalidAction", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/grade-items", map[string]interface{}{
			"action": "archive", "sectionId": 1, "subjectId": 2, "periodId": s.periodID, "categoryId": "WW",
		}, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, CodeValidation, resp.Code)
	})

	t.Run("UpdateByOtherTeacherIsForbidden", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/v1/grade-items", map[string]interface{}{
			"itemId": first.ID, "name": "Mine now",
		}, "teacher-2", models.RoleTeacher)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Update", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/api/v1/grade-items", map[string]interface{}{
			"itemId": first.ID, "totalScore": 30,
		}, "teacher-1", models.RoleTeacher)
		require.Equal(t, http.StatusOK, w.Code)

		var item models.GradeItem
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
		assert.Equal(t, 30.0, item.MaxScore)
	})

	t.Run("RemoveLatestThenLastIsConflict", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/grade-items", map[string]interface{}{
			"action": "remove", "sectionId": 1, "subjectId": 2, "periodId": s.periodID, "categoryId": "WW",
		}, "teacher-1", models.RoleTeacher)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(t, http.MethodDelete, "/api/v1/grade-items", map[string]interface{}{"itemId": first.ID}, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, CodeBusinessRule, resp.Code)
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/api/v1/grade-items", map[string]interface{}{"itemId": 999}, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGradesAndRecordRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	studentID := s.store.AddStudent("2025-0001", "Ana Cruz")
	s.addItem(t, models.CategoryWrittenWork)
	second := s.addItem(t, models.CategoryWrittenWork)

	save := func(scores ...interface{}) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/v1/grades/save", map[string]interface{}{
			"sectionId": 1,
			"subjectId": 2,
			"periodId":  s.periodID,
			"grades": []map[string]interface{}{
				{"studentAccountRef": "2025-0001", "writtenWork": scores},
				{"studentAccountRef": "2025-0404", "writtenWork": scores},
			},
		}, "teacher-1", models.RoleTeacher)
	}
	verifyBody := map[string]interface{}{
		"studentId": studentID, "sectionId": 1, "subjectId": 2, "periodId": s.periodID,
	}

	t.Run("PartialSaveIsMultiStatus", func(t *testing.T) {
		w := save(70, "90")
		require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

		var result services.SaveGradesResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, []string{"2025-0001"}, result.Saved)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, services.SkipReasonStudentNotFound, result.Skipped[0].Reason)
		require.Len(t, result.Records, 1)
		assert.Equal(t, 80.0, result.Records[0].WrittenWorkAverage)
	})

	t.Run("InvalidScoreIsBadRequest", func(t *testing.T) {
		w := save(70, "ninety")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "grades[0].writtenWork[1]")
	})

	t.Run("ListRecords", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/grade-records?"+s.query(), nil, "teacher-1", models.RoleTeacher)
		require.Equal(t, http.StatusOK, w.Code)

		var records []models.GradeRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.InDelta(t, 24.0, records[0].FinalGrade, 1e-9)
	})

	t.Run("TeacherCannotVerify", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/grade-records/verify", verifyBody, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("VerifiedScopeLocksRemoval", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/grade-records/verify", verifyBody, "adviser-1", models.RoleAdviser)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(t, http.MethodDelete, "/api/v1/grade-items", map[string]interface{}{"itemId": second.ID}, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusLocked, w.Code)

		w = s.do(t, http.MethodPost, "/api/v1/grade-records/unverify", verifyBody, "adviser-1", models.RoleAdviser)
		require.Equal(t, http.StatusOK, w.Code)

		var record models.GradeRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.False(t, record.Verified)
	})

	t.Run("Export", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/grade-records/export?"+s.query(), nil, "teacher-1", models.RoleTeacher)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "class_record_1_2_")
		assert.NotEmpty(t, w.Body.Bytes())
	})

	t.Run("BadQuery", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/grade-records?section_id=abc", nil, "teacher-1", models.RoleTeacher)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

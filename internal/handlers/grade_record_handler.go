package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type GradeRecordHandler struct {
	BaseHandler
	aggregator   services.AggregatorService
	verification services.VerificationService
	export       services.ExportService
}

func NewGradeRecordHandler(
	aggregator services.AggregatorService,
	verification services.VerificationService,
	export services.ExportService,
	logger utils.Logger,
) *GradeRecordHandler {
	return &GradeRecordHandler{
		BaseHandler:  NewBaseHandler(logger),
		aggregator:   aggregator,
		verification: verification,
		export:       export,
	}
}

// ListGradeRecords
// @Summary List grade records
// @Tags grade-records
// @Produce json
// @Param section_id query uint true "Section ID"
// @Param subject_id query uint true "Subject ID"
// @Param period_id query uint true "Period ID"
// @Success 200 {array} models.GradeRecord
// @Router /grade-records [get]
func (h *GradeRecordHandler) ListGradeRecords(c *gin.Context) {
	scope, ok := h.bindScope(c)
	if !ok {
		return
	}
	if scope.SectionID == 0 || scope.SubjectID == 0 || scope.PeriodID == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidation, "section_id, subject_id and period_id are required", nil)
		return
	}

	records, err := h.aggregator.ListRecords(c.Request.Context(), scope)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// VerifyGradeRecord locks a student's record
// @Summary Verify grade record
// @Tags grade-records
// @Accept json
// @Produce json
// @Param request body services.VerificationRequest true "Record key"
// @Success 200 {object} models.GradeRecord
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grade-records/verify [post]
func (h *GradeRecordHandler) VerifyGradeRecord(c *gin.Context) {
	h.transition(c, h.verification.Verify, "Verifying grade record")
}

// UnverifyGradeRecord reopens a student's record
// @Summary Unverify grade record
// @Tags grade-records
// @Accept json
// @Produce json
// @Param request body services.VerificationRequest true "Record key"
// @Success 200 {object} models.GradeRecord
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grade-records/unverify [post]
func (h *GradeRecordHandler) UnverifyGradeRecord(c *gin.Context) {
	h.transition(c, h.verification.Unverify, "Unverifying grade record")
}

type verificationFunc func(ctx context.Context, req *services.VerificationRequest, caller models.Identity) (*models.GradeRecord, error)

func (h *GradeRecordHandler) transition(c *gin.Context, apply verificationFunc, message string) {
	caller, _ := identityFrom(c)

	var req services.VerificationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, message, "student_id", req.StudentID, "section_id", req.SectionID)

	record, err := apply(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ExportClassRecord streams the class record workbook
// @Summary Export class record
// @Tags grade-records
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param section_id query uint true "Section ID"
// @Param subject_id query uint true "Subject ID"
// @Param period_id query uint true "Period ID"
// @Success 200 {file} file
// @Router /grade-records/export [get]
func (h *GradeRecordHandler) ExportClassRecord(c *gin.Context) {
	caller, _ := identityFrom(c)
	scope, ok := h.bindScope(c)
	if !ok {
		return
	}

	data, err := h.export.ExportClassRecord(c.Request.Context(), scope, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("class_record_%d_%d_%d_%s.xlsx",
		scope.SectionID, scope.SubjectID, scope.PeriodID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

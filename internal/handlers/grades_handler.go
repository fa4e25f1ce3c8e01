package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type GradesHandler struct {
	BaseHandler
	scoreService services.ScoreService
}

func NewGradesHandler(scoreService services.ScoreService, logger utils.Logger) *GradesHandler {
	return &GradesHandler{
		BaseHandler:  NewBaseHandler(logger),
		scoreService: scoreService,
	}
}

// SaveGrades upserts a batch of positional scores
// @Summary Save grades
// @Description Saves scores per student; unknown and verified students are skipped
// @Tags grades
// @Accept json
// @Produce json
// @Param request body services.SaveGradesRequest true "Grades"
// @Success 200 {object} services.SaveGradesResult
// @Success 207 {object} services.SaveGradesResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /grades/save [post]
func (h *GradesHandler) SaveGrades(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req services.SaveGradesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Saving grades", "section_id", req.SectionID, "subject_id", req.SubjectID, "students", len(req.Grades))

	result, err := h.scoreService.UpsertScores(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if len(result.Skipped) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const (
	GradeActionAdd    = "add"
	GradeActionRemove = "remove"
)

type GradeItemHandler struct {
	BaseHandler
	gradeItemService services.GradeItemService
	validator        *validator.Validator
}

// GradeItemActionRequest is the add/remove envelope posted by the grading sheet
type GradeItemActionRequest struct {
	Action       string              `json:"action" validate:"required,grade_action"`
	SectionID    uint                `json:"sectionId" validate:"required"`
	SubjectID    uint                `json:"subjectId" validate:"required"`
	PeriodID     uint                `json:"periodId" validate:"required"`
	CategoryCode models.CategoryCode `json:"categoryId" validate:"required,category_code"`
	ItemData     *GradeItemData      `json:"itemData,omitempty"`
}

type GradeItemData struct {
	Name     *string  `json:"name,omitempty"`
	MaxScore *float64 `json:"totalScore,omitempty"`
}

type RemoveGradeItemRequest struct {
	ItemID uint `json:"itemId" validate:"required"`
}

func NewGradeItemHandler(
	gradeItemService services.GradeItemService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradeItemHandler {
	return &GradeItemHandler{
		BaseHandler:      NewBaseHandler(logger),
		gradeItemService: gradeItemService,
		validator:        validator,
	}
}

// ListGradeItems returns the caller's active items grouped by category
// @Summary List grade items
// @Tags grade-items
// @Produce json
// @Param section_id query uint true "Section ID"
// @Param subject_id query uint true "Subject ID"
// @Param period_id query uint true "Period ID"
// @Success 200 {object} services.GradeItemListResponse
// @Failure 400 {object} ErrorResponse
// @Router /grade-items [get]
func (h *GradeItemHandler) ListGradeItems(c *gin.Context) {
	caller, _ := identityFrom(c)
	scope, ok := h.bindScope(c)
	if !ok {
		return
	}

	result, err := h.gradeItemService.ListItems(c.Request.Context(), scope, caller.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PostGradeItemAction adds a numbered item or removes the latest one
// @Summary Add or remove a grade item
// @Tags grade-items
// @Accept json
// @Produce json
// @Param request body GradeItemActionRequest true "Action"
// @Success 200 {object} models.GradeItem
// @Success 201 {object} models.GradeItem
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /grade-items [post]
func (h *GradeItemHandler) PostGradeItemAction(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req GradeItemActionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Grade item action", "action", req.Action, "category", req.CategoryCode)

	if req.Action == GradeActionRemove {
		scope := models.GradeScope{SectionID: req.SectionID, SubjectID: req.SubjectID, PeriodID: req.PeriodID}
		item, err := h.gradeItemService.RemoveLatestItem(c.Request.Context(), scope, req.CategoryCode, caller)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
		return
	}

	add := &services.AddGradeItemRequest{
		SectionID:    req.SectionID,
		SubjectID:    req.SubjectID,
		PeriodID:     req.PeriodID,
		CategoryCode: req.CategoryCode,
	}
	if req.ItemData != nil {
		add.Name = req.ItemData.Name
		add.MaxScore = req.ItemData.MaxScore
	}

	item, err := h.gradeItemService.AddItem(c.Request.Context(), add, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UpdateGradeItem renames an item or changes its maximum score
// @Summary Update grade item
// @Tags grade-items
// @Accept json
// @Produce json
// @Param request body services.UpdateGradeItemRequest true "Changes"
// @Success 200 {object} models.GradeItem
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grade-items [put]
func (h *GradeItemHandler) UpdateGradeItem(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req services.UpdateGradeItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.gradeItemService.UpdateItem(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteGradeItem removes one item together with its scores
// @Summary Remove grade item
// @Tags grade-items
// @Accept json
// @Produce json
// @Param request body RemoveGradeItemRequest true "Item"
// @Success 200 {object} models.GradeItem
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /grade-items [delete]
func (h *GradeItemHandler) DeleteGradeItem(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req RemoveGradeItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Removing grade item", "item_id", req.ItemID)

	item, err := h.gradeItemService.RemoveItem(c.Request.Context(), req.ItemID, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

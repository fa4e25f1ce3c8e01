package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

const classRecordSheet = "Class Record"

type exportService struct {
	repo       repositories.Repository
	aggregator AggregatorService
	activity   ActivityRecorder
	logger     *slog.Logger
	validator  *validator.Validator
}

func NewExportService(repo repositories.Repository, aggregator AggregatorService, activity ActivityRecorder, logger *slog.Logger, validator *validator.Validator) ExportService {
	return &exportService{
		repo:       repo,
		aggregator: aggregator,
		activity:   activity,
		logger:     logger,
		validator:  validator,
	}
}

// ExportClassRecord writes one row per graded student: raw scores per item,
// category averages, the final grade and the verification state.
func (s *exportService) ExportClassRecord(ctx context.Context, scope models.GradeScope, caller models.Identity) ([]byte, error) {
	if err := s.validator.Validate(&scope); err != nil {
		return nil, err
	}

	items, err := s.repo.GradeItem().ListActive(ctx, itemFilters(scope, ""))
	if err != nil {
		return nil, storageErr("list_grade_items", err)
	}
	grouped := groupItems(items)

	records, err := s.aggregator.ListRecords(ctx, scope)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]uint, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}
	scores, err := s.repo.Score().ListByItems(ctx, itemIDs)
	if err != nil {
		return nil, storageErr("list_scores", err)
	}
	scoreByStudent := make(map[uint]map[uint]float64)
	for _, score := range scores {
		if scoreByStudent[score.StudentID] == nil {
			scoreByStudent[score.StudentID] = make(map[uint]float64)
		}
		scoreByStudent[score.StudentID][score.GradeItemID] = score.Score
	}

	studentIDs := make([]uint, len(records))
	recordByStudent := make(map[uint]*models.GradeRecord, len(records))
	for i, record := range records {
		studentIDs[i] = record.StudentID
		recordByStudent[record.StudentID] = record
	}
	students, err := s.repo.Student().GetByIDs(ctx, studentIDs)
	if err != nil {
		return nil, storageErr("list_students", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(classRecordSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Debug("Default sheet not removed", "error", err)
	}

	// Write headers
	headers := []interface{}{"Account Number", "Student Name"}
	for _, code := range models.CategoryCodes {
		for _, item := range *grouped.byCategory(code) {
			headers = append(headers, fmt.Sprintf("%s (%g)", item.Name, item.MaxScore))
		}
		headers = append(headers, fmt.Sprintf("%s Average", models.CanonicalCategories[code].Name))
	}
	headers = append(headers, "Final Grade", "Verified")

	if err := f.SetSheetRow(classRecordSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	// Write student rows
	for rowIndex, student := range students {
		record := recordByStudent[student.ID]
		studentScores := scoreByStudent[student.ID]

		row := []interface{}{student.AccountNumber, student.FullName}
		for _, code := range models.CategoryCodes {
			for _, item := range *grouped.byCategory(code) {
				if score, ok := studentScores[item.ID]; ok {
					row = append(row, score)
				} else {
					row = append(row, "")
				}
			}
			row = append(row, record.Average(code))
		}

		verified := "No"
		if record.Verified {
			verified = "Yes"
		}
		row = append(row, record.FinalGrade, verified)

		cell, err := excelize.CoordinatesToCellName(1, rowIndex+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(classRecordSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write student row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		Action:      models.ActivityClassRecordExported,
		Actor:       caller,
		TargetType:  "section_subject",
		TargetID:    &scope.SectionID,
		Description: fmt.Sprintf("Exported class record with %d student(s)", len(students)),
		Metadata: map[string]interface{}{
			"section_id": scope.SectionID,
			"subject_id": scope.SubjectID,
			"period_id":  scope.PeriodID,
		},
	})

	return buf.Bytes(), nil
}

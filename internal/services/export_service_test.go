package services

import (
	"bytes"
	"testing"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_ExportClassRecord(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddStudent("2025-0002", "Ben Reyes")
	env.store.AddStudent("2025-0001", "Ana Cruz")
	env.addItem(t, asTeacherA, models.CategoryWrittenWork, floatPtr(50))
	env.addItem(t, asTeacherA, models.CategoryPerformanceTask, nil)

	_, err := env.saveGrades(asTeacherA,
		StudentGradeEntry{StudentAccountRef: "2025-0001", WrittenWork: scores(40), PerformanceTasks: scores(90)},
		StudentGradeEntry{StudentAccountRef: "2025-0002", PerformanceTasks: scores(80)},
	)
	require.NoError(t, err)

	data, err := env.services.Export.ExportClassRecord(env.ctx, env.scope(), asTeacherA)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(classRecordSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"Account Number", "Student Name",
		"WW 1 (50)", "Written Work Average",
		"PT 1 (100)", "Performance Task Average",
		"Quarterly Assessment Average",
		"Final Grade", "Verified",
	}, rows[0])

	// Rows are ordered by student name.
	assert.Equal(t, "2025-0001", rows[1][0])
	assert.Equal(t, "Ana Cruz", rows[1][1])
	assert.Equal(t, "40", rows[1][2])
	assert.Equal(t, "No", rows[1][8])
	assert.Equal(t, "Ben Reyes", rows[2][1])
	assert.Equal(t, "", rows[2][2])

	var exported int
	for _, entry := range env.store.ActivityLogs() {
		if entry.Action == models.ActivityClassRecordExported {
			exported++
		}
	}
	assert.Equal(t, 1, exported)
}

func TestExportService_InvalidScope(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.services.Export.ExportClassRecord(env.ctx, models.GradeScope{}, asTeacherA)
	assert.True(t, IsValidation(err))
}

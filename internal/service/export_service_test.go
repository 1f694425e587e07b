package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sheetgrader/internal/models"
)

type fakeResultLister struct {
	records []models.StudentResultRecord
	err     error
}

func (f *fakeResultLister) ListByAssessment(ctx context.Context, assessmentID, teacherID string) ([]models.StudentResultRecord, error) {
	return f.records, f.err
}

func TestExportWritesCSVAndPDF(t *testing.T) {
	lister := &fakeResultLister{records: []models.StudentResultRecord{
		{AssessmentID: "MATH-7A", StudentID: "S-1", TotalScore: 8, TotalQuestions: 10, IsFinalScore: true, CheckedAt: time.Now().UTC()},
		{AssessmentID: "MATH-7A", StudentID: "S-2", TotalScore: 6, TotalQuestions: 10, IsFinalScore: false, CheckedAt: time.Now().UTC()},
	}}
	svc := NewExportService(lister, t.TempDir(), nil)

	csvPath, pdfPath, err := svc.Export(context.Background(), "MATH-7A", "T-1")
	require.NoError(t, err)

	csvBytes, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	body := string(csvBytes)
	assert.Contains(t, body, "student_id,score,total_questions,final,checked_at")
	assert.Contains(t, body, "S-1,8,10,yes")
	assert.Contains(t, body, "S-2,6,10,pending essays")
	assert.True(t, strings.HasPrefix(body, "\xef\xbb\xbf"), "csv carries a BOM for spreadsheet apps")

	pdfBytes, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdfBytes), "%PDF"), "pdf magic header")
}

func TestExportRejectsEmptyAssessment(t *testing.T) {
	svc := NewExportService(&fakeResultLister{}, t.TempDir(), nil)

	_, _, err := svc.Export(context.Background(), "MATH-7A", "T-1")
	require.Error(t, err)
}

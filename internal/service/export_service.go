package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/internal/models"
	"github.com/noah-isme/sheetgrader/pkg/export"
)

type resultLister interface {
	ListByAssessment(ctx context.Context, assessmentID, teacherID string) ([]models.StudentResultRecord, error)
}

// ExportService writes the graded results of one assessment to local files:
// a CSV for the school's spreadsheet workflow and a printable PDF score sheet.
type ExportService struct {
	results resultLister
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	dir     string
	logger  *zap.Logger
}

// NewExportService constructs the service; dir is the local export directory.
func NewExportService(results resultLister, dir string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		results: results,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		dir:     dir,
		logger:  logger,
	}
}

// Export renders both files and returns their paths.
func (s *ExportService) Export(ctx context.Context, assessmentID, teacherID string) (csvPath, pdfPath string, err error) {
	records, err := s.results.ListByAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return "", "", err
	}
	if len(records) == 0 {
		return "", "", fmt.Errorf("no graded sheets for assessment %s", assessmentID)
	}

	table := resultsTable(records)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create export dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	base := filepath.Join(s.dir, fmt.Sprintf("%s-%s", assessmentID, stamp))

	csvBytes, err := s.csv.Render(table)
	if err != nil {
		return "", "", err
	}
	csvPath = base + ".csv"
	if err := os.WriteFile(csvPath, csvBytes, 0o644); err != nil {
		return "", "", fmt.Errorf("write csv export: %w", err)
	}

	pdfBytes, err := s.pdf.Render(table, "Score Sheet "+assessmentID)
	if err != nil {
		return "", "", err
	}
	pdfPath = base + ".pdf"
	if err := os.WriteFile(pdfPath, pdfBytes, 0o644); err != nil {
		return "", "", fmt.Errorf("write pdf export: %w", err)
	}

	s.logger.Info("results exported",
		zap.String("assessment_id", assessmentID),
		zap.Int("students", len(records)),
		zap.String("csv", csvPath),
		zap.String("pdf", pdfPath),
	)
	return csvPath, pdfPath, nil
}

func resultsTable(records []models.StudentResultRecord) export.Table {
	table := export.Table{
		Headers: []string{"student_id", "score", "total_questions", "final", "checked_at"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, rec := range records {
		final := "yes"
		if !rec.IsFinalScore {
			final = "pending essays"
		}
		table.Rows = append(table.Rows, map[string]string{
			"student_id":      rec.StudentID,
			"score":           strconv.Itoa(rec.TotalScore),
			"total_questions": strconv.Itoa(rec.TotalQuestions),
			"final":           final,
			"checked_at":      rec.CheckedAt.Format(time.RFC3339),
		})
	}
	return table
}

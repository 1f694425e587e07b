package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sheetgrader/internal/models"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// ResultRepository persists graded student sheets.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save inserts or replaces the result for one (assessment, student) pair.
// Rescanning a sheet overwrites the previous grade.
func (r *ResultRepository) Save(ctx context.Context, record *models.StudentResultRecord) error {
	const query = `INSERT INTO student_results (assessment_id, student_id, teacher_id, breakdown, total_score, total_questions, is_final_score, image_urls, checked_at)
VALUES (:assessment_id, :student_id, :teacher_id, :breakdown, :total_score, :total_questions, :is_final_score, :image_urls, :checked_at)
ON CONFLICT (assessment_id, student_id)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, breakdown = EXCLUDED.breakdown,
              total_score = EXCLUDED.total_score, total_questions = EXCLUDED.total_questions,
              is_final_score = EXCLUDED.is_final_score, image_urls = EXCLUDED.image_urls,
              checked_at = EXCLUDED.checked_at`
	if record.CheckedAt.IsZero() {
		record.CheckedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "save student result")
	}
	return nil
}

// ListByAssessment returns every graded sheet of one assessment, ordered by
// student identifier, for the results export.
func (r *ResultRepository) ListByAssessment(ctx context.Context, assessmentID, teacherID string) ([]models.StudentResultRecord, error) {
	const query = `SELECT assessment_id, student_id, teacher_id, breakdown, total_score, total_questions, is_final_score, image_urls, checked_at
FROM student_results WHERE assessment_id = $1 AND teacher_id = $2 ORDER BY student_id ASC`
	var records []models.StudentResultRecord
	if err := r.db.SelectContext(ctx, &records, query, assessmentID, teacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "list student results")
	}
	return records, nil
}

// AttachImages fills in the image references of an already persisted result.
// The background upload worker calls this after a deferred upload lands.
func (r *ResultRepository) AttachImages(ctx context.Context, teacherID, assessmentID, studentID string, urls []string) error {
	const query = `UPDATE student_results SET image_urls = $1
WHERE assessment_id = $2 AND student_id = $3 AND teacher_id = $4`
	list := models.ImageList(urls)
	if _, err := r.db.ExecContext(ctx, query, list, assessmentID, studentID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "attach result images")
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sheetgrader/internal/models"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// AnswerKeyRepository persists teacher answer keys.
type AnswerKeyRepository struct {
	db *sqlx.DB
}

// NewAnswerKeyRepository constructs the repository.
func NewAnswerKeyRepository(db *sqlx.DB) *AnswerKeyRepository {
	return &AnswerKeyRepository{db: db}
}

// Save inserts or replaces the key for an assessment. Rescanning a key is a
// normal correction flow, so the last scan always wins.
func (r *AnswerKeyRepository) Save(ctx context.Context, record *models.AnswerKeyRecord) error {
	const query = `INSERT INTO answer_keys (assessment_id, teacher_id, answers, total_questions, image_urls, created_at, updated_at)
VALUES (:assessment_id, :teacher_id, :answers, :total_questions, :image_urls, :created_at, :updated_at)
ON CONFLICT (assessment_id)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, answers = EXCLUDED.answers,
              total_questions = EXCLUDED.total_questions, image_urls = EXCLUDED.image_urls,
              updated_at = EXCLUDED.updated_at`
	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "save answer key")
	}
	return nil
}

// Find returns the key for one assessment.
func (r *AnswerKeyRepository) Find(ctx context.Context, assessmentID string) (*models.AnswerKeyRecord, error) {
	const query = `SELECT assessment_id, teacher_id, answers, total_questions, image_urls, created_at, updated_at
FROM answer_keys WHERE assessment_id = $1`
	var record models.AnswerKeyRecord
	if err := r.db.GetContext(ctx, &record, query, assessmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssessmentNotFound, "no answer key for assessment "+assessmentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "find answer key")
	}
	return &record, nil
}

// ListByTeacher returns the teacher's keys, most recently updated first, for
// the assessment picker menu.
func (r *AnswerKeyRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]models.AnswerKeyRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT assessment_id, teacher_id, answers, total_questions, image_urls, created_at, updated_at
FROM answer_keys WHERE teacher_id = $1 ORDER BY updated_at DESC LIMIT $2`
	var records []models.AnswerKeyRecord
	if err := r.db.SelectContext(ctx, &records, query, teacherID, limit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "list answer keys")
	}
	return records, nil
}

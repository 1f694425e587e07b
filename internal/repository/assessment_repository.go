package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// AssessmentRepository reads the assessment registry maintained by the school
// administration app. The kiosk only validates against it, never writes.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Validate confirms the assessment exists and belongs to the teacher. The
// identifier comes off a scanned sheet, so a miss usually means a misread or
// a sheet from someone else's class.
func (r *AssessmentRepository) Validate(ctx context.Context, assessmentID, teacherID string) error {
	const query = `SELECT 1 FROM assessments WHERE id = $1 AND teacher_id = $2`
	var one int
	if err := r.db.GetContext(ctx, &one, query, assessmentID, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAssessmentNotFound, "assessment "+assessmentID+" is not registered for this teacher")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistFailed.Code, appErrors.KindNetwork, "validate assessment")
	}
	return nil
}

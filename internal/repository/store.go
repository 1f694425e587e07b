package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sheetgrader/internal/models"
)

// Store bundles the kiosk repositories behind the single persistence surface
// the scan pipeline consumes.
type Store struct {
	Assessments *AssessmentRepository
	Keys        *AnswerKeyRepository
	Results     *ResultRepository
}

// NewStore wires all repositories onto one database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		Assessments: NewAssessmentRepository(db),
		Keys:        NewAnswerKeyRepository(db),
		Results:     NewResultRepository(db),
	}
}

func (s *Store) ValidateAssessment(ctx context.Context, assessmentID, teacherID string) error {
	return s.Assessments.Validate(ctx, assessmentID, teacherID)
}

func (s *Store) SaveAnswerKey(ctx context.Context, record *models.AnswerKeyRecord) error {
	return s.Keys.Save(ctx, record)
}

func (s *Store) SaveStudentResult(ctx context.Context, record *models.StudentResultRecord) error {
	return s.Results.Save(ctx, record)
}

func (s *Store) AttachResultImages(ctx context.Context, teacherID, assessmentID, studentID string, urls []string) error {
	return s.Results.AttachImages(ctx, teacherID, assessmentID, studentID, urls)
}

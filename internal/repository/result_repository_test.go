package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sheetgrader/internal/models"
)

func TestResultRepositorySaveUpserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("INSERT INTO student_results").
		WithArgs("MATH-7A", "S-9", "T-1", sqlmock.AnyArg(), 1, 2, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.StudentResultRecord{
		AssessmentID:   "MATH-7A",
		StudentID:      "S-9",
		TeacherID:      "T-1",
		Breakdown:      models.Breakdown{{Number: 1, StudentAnswer: "A", CorrectAnswer: "A", Outcome: models.OutcomeCorrect}},
		TotalScore:     1,
		TotalQuestions: 2,
		IsFinalScore:   true,
	}
	require.NoError(t, repo.Save(context.Background(), record))
	assert.False(t, record.CheckedAt.IsZero())
}

func TestResultRepositoryAttachImages(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectExec("UPDATE student_results SET image_urls").
		WithArgs(sqlmock.AnyArg(), "MATH-7A", "S-9", "T-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AttachImages(context.Background(), "T-1", "MATH-7A", "S-9", []string{"https://cdn/late"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

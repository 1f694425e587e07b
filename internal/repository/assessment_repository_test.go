package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

func TestAssessmentRepositoryValidate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM assessments").
		WithArgs("MATH-7A", "T-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, repo.Validate(context.Background(), "MATH-7A", "T-1"))
}

func TestAssessmentRepositoryValidateUnknown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssessmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM assessments").
		WithArgs("GHOST", "T-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	err := repo.Validate(context.Background(), "GHOST", "T-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindData, appErrors.KindOf(err), "an unknown assessment must never look retriable")
}

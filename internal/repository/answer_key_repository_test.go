package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sheetgrader/internal/models"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestAnswerKeyRepositorySaveUpserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerKeyRepository(db)

	mock.ExpectExec("INSERT INTO answer_keys").
		WithArgs("MATH-7A", "T-1", sqlmock.AnyArg(), 2, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AnswerKeyRecord{
		AssessmentID:   "MATH-7A",
		TeacherID:      "T-1",
		Answers:        models.AnswerMap{1: "A", 2: "B"},
		TotalQuestions: 2,
	}
	require.NoError(t, repo.Save(context.Background(), record))
	assert.False(t, record.UpdatedAt.IsZero())
	assert.False(t, record.CreatedAt.IsZero())
}

func TestAnswerKeyRepositoryFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerKeyRepository(db)

	rows := sqlmock.NewRows([]string{"assessment_id", "teacher_id", "answers", "total_questions", "image_urls", "created_at", "updated_at"}).
		AddRow("MATH-7A", "T-1", []byte(`{"1":"A","2":"essay_answer"}`), 2, []byte(`["https://cdn/img1"]`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT assessment_id").
		WithArgs("MATH-7A").
		WillReturnRows(rows)

	record, err := repo.Find(context.Background(), "MATH-7A")
	require.NoError(t, err)
	assert.Equal(t, "A", record.Answers[1])
	assert.Equal(t, "essay_answer", record.Answers[2])
	assert.Equal(t, models.ImageList{"https://cdn/img1"}, record.ImageURLs)
}

func TestAnswerKeyRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerKeyRepository(db)

	mock.ExpectQuery("SELECT assessment_id").
		WithArgs("GHOST").
		WillReturnRows(sqlmock.NewRows([]string{"assessment_id"}))

	_, err := repo.Find(context.Background(), "GHOST")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAssessmentNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, appErrors.KindData, appErrors.KindOf(err))
}

func TestAnswerKeyRepositoryListByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerKeyRepository(db)

	rows := sqlmock.NewRows([]string{"assessment_id", "teacher_id", "answers", "total_questions", "image_urls", "created_at", "updated_at"}).
		AddRow("MATH-7A", "T-1", []byte(`{"1":"A"}`), 1, []byte(`[]`), time.Now(), time.Now()).
		AddRow("SCI-7B", "T-1", []byte(`{"1":"B"}`), 1, []byte(`[]`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT assessment_id").
		WithArgs("T-1", 20).
		WillReturnRows(rows)

	records, err := repo.ListByTeacher(context.Background(), "T-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "MATH-7A", records[0].AssessmentID)
}

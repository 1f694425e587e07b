package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sheetgrader/internal/answer"
	"github.com/noah-isme/sheetgrader/internal/models"
)

func TestScoreMixedSheet(t *testing.T) {
	key := models.AnswerMap{1: "A", 2: "TRUE", 3: answer.Essay, 4: "C"}
	student := models.AnswerMap{1: "A", 2: "FALSE", 3: "my essay text", 4: answer.Unreadable}

	got := Scorer{}.Score(key, student, 4)

	require.Len(t, got.Breakdown, 4)
	assert.Equal(t, models.OutcomeCorrect, got.Breakdown[0].Outcome)
	assert.Equal(t, models.OutcomeWrong, got.Breakdown[1].Outcome)
	assert.Equal(t, models.OutcomePending, got.Breakdown[2].Outcome, "essays are never auto-graded")
	assert.Equal(t, models.OutcomeWrong, got.Breakdown[3].Outcome, "unreadable answers score as wrong")
	assert.Equal(t, 1, got.TotalScore)
	assert.False(t, got.IsFinalScore, "pending essay keeps the score non-final")
	assert.False(t, got.CountMismatch)
}

func TestScoreMissingStudentAnswers(t *testing.T) {
	key := models.AnswerMap{1: "A", 2: "B", 3: "C"}
	student := models.AnswerMap{2: "B"}

	got := Scorer{}.Score(key, student, 3)

	assert.Equal(t, 1, got.TotalScore)
	assert.True(t, got.CountMismatch)
	assert.Equal(t, answer.MissingAnswer, got.Breakdown[0].StudentAnswer)
	assert.Equal(t, models.OutcomeWrong, got.Breakdown[0].Outcome)
	assert.True(t, got.IsFinalScore, "no essays, score is final despite the mismatch")
}

func TestScoreSentinelInKeyScoresWrong(t *testing.T) {
	key := models.AnswerMap{1: answer.Unreadable}
	student := models.AnswerMap{1: answer.Unreadable}

	got := Scorer{}.Score(key, student, 1)

	assert.Equal(t, models.OutcomeWrong, got.Breakdown[0].Outcome,
		"matching sentinels must not count as a correct answer")
	assert.Zero(t, got.TotalScore)
}

func TestScoreIsTotal(t *testing.T) {
	got := Scorer{}.Score(models.AnswerMap{}, models.AnswerMap{}, 5)

	require.Len(t, got.Breakdown, 5)
	for i, qr := range got.Breakdown {
		assert.Equal(t, i+1, qr.Number)
		assert.Equal(t, models.OutcomeWrong, qr.Outcome)
	}
	assert.Zero(t, got.TotalScore)
	assert.True(t, got.IsFinalScore)
}

func TestScoreScoreEqualsCorrectCount(t *testing.T) {
	key := models.AnswerMap{1: "A", 2: "B", 3: "C", 4: "D"}
	student := models.AnswerMap{1: "a", 2: "b", 3: "x", 4: "d"}

	got := Scorer{}.Score(key, student, 4)

	correct := 0
	for _, qr := range got.Breakdown {
		if qr.Outcome == models.OutcomeCorrect {
			correct++
		}
	}
	assert.Equal(t, correct, got.TotalScore)
	assert.Equal(t, 3, got.TotalScore, "comparison is normalization-insensitive")
}

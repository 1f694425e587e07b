package service

import (
	"github.com/noah-isme/sheetgrader/internal/answer"
	"github.com/noah-isme/sheetgrader/internal/models"
)

// Scorer compares a student's extracted answers against the stored key.
// Score is pure and total: it performs no I/O and never fails for well-formed
// input; malformed payloads are the Sanitizer's responsibility.
type Scorer struct{}

// Score grades every question from 1 to totalQuestions. Absent entries on
// either side count as missing answers. Essay questions in the key are never
// auto-graded; they stay pending for manual review and keep the score
// non-final. A student answer count differing from totalQuestions raises the
// CountMismatch warning without blocking.
func (Scorer) Score(key, student models.AnswerMap, totalQuestions int) models.ScoreResult {
	result := models.ScoreResult{
		Breakdown:     make(models.Breakdown, 0, totalQuestions),
		IsFinalScore:  true,
		CountMismatch: len(student) != totalQuestions,
	}

	for q := 1; q <= totalQuestions; q++ {
		keyAnswer, ok := key[q]
		if !ok {
			keyAnswer = answer.MissingAnswer
		}
		studentAnswer, ok := student[q]
		if !ok {
			studentAnswer = answer.MissingAnswer
		}

		outcome := grade(keyAnswer, studentAnswer)
		if outcome == models.OutcomeCorrect {
			result.TotalScore++
		}
		if outcome == models.OutcomePending {
			result.IsFinalScore = false
		}
		result.Breakdown = append(result.Breakdown, models.QuestionResult{
			Number:        q,
			StudentAnswer: studentAnswer,
			CorrectAnswer: keyAnswer,
			Outcome:       outcome,
		})
	}
	return result
}

func grade(keyAnswer, studentAnswer string) models.Outcome {
	if keyAnswer == answer.Essay {
		return models.OutcomePending
	}
	if answer.IsSentinel(studentAnswer) || answer.IsSentinel(keyAnswer) {
		return models.OutcomeWrong
	}
	if answer.Normalize(keyAnswer) == answer.Normalize(studentAnswer) {
		return models.OutcomeCorrect
	}
	return models.OutcomeWrong
}

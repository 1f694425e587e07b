package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome classifies one question of a graded sheet.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	// OutcomePending marks an essay question awaiting manual grading.
	OutcomePending Outcome = "pending"
)

// QuestionResult is one row of a result breakdown.
type QuestionResult struct {
	Number        int     `json:"number"`
	StudentAnswer string  `json:"student_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	Outcome       Outcome `json:"outcome"`
}

// Breakdown is the ordered per-question outcome list, stored as JSONB.
type Breakdown []QuestionResult

// Value implements driver.Valuer.
func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		b = Breakdown{}
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *Breakdown) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*b = Breakdown{}
		return nil
	default:
		return fmt.Errorf("breakdown: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, b)
}

// ScoreResult is the outcome of grading one student sheet against a key.
// CountMismatch is a warning flag: the extraction produced a different number
// of answers than the key declares. It never blocks persistence.
type ScoreResult struct {
	Breakdown     Breakdown
	TotalScore    int
	IsFinalScore  bool
	CountMismatch bool
}

// StudentResultRecord is one graded sheet, keyed by (assessment, student).
type StudentResultRecord struct {
	AssessmentID   string    `db:"assessment_id" json:"assessment_uid" validate:"required"`
	StudentID      string    `db:"student_id" json:"student_id" validate:"required"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id" validate:"required"`
	Breakdown      Breakdown `db:"breakdown" json:"breakdown"`
	TotalScore     int       `db:"total_score" json:"total_score"`
	TotalQuestions int       `db:"total_questions" json:"total_questions" validate:"required,gt=0"`
	IsFinalScore   bool      `db:"is_final_score" json:"is_final_score"`
	ImageURLs      ImageList `db:"image_urls" json:"image_urls"`
	CheckedAt      time.Time `db:"checked_at" json:"checked_at"`
}

// Validate enforces the record invariants: the total equals the number of
// correct outcomes and the final flag is false exactly when an outcome is
// still pending.
func (r *StudentResultRecord) Validate() error {
	correct, pending := 0, 0
	for _, q := range r.Breakdown {
		switch q.Outcome {
		case OutcomeCorrect:
			correct++
		case OutcomePending:
			pending++
		}
	}
	if r.TotalScore != correct {
		return fmt.Errorf("result %s/%s: total score %d does not match %d correct outcomes", r.AssessmentID, r.StudentID, r.TotalScore, correct)
	}
	if r.IsFinalScore == (pending > 0) {
		return fmt.Errorf("result %s/%s: is_final_score inconsistent with %d pending outcomes", r.AssessmentID, r.StudentID, pending)
	}
	return nil
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// AnswerMap holds the ordered question-number to answer mapping. Keys are
// 1-based question indices. The map is stored as a JSONB column.
type AnswerMap map[int]string

// Value implements driver.Valuer, serialising the map with string keys so the
// persisted payload matches the wire format of the extraction service.
func (m AnswerMap) Value() (driver.Value, error) {
	out := make(map[string]string, len(m))
	for q, v := range m {
		out[strconv.Itoa(q)] = v
	}
	return json.Marshal(out)
}

// Scan implements sql.Scanner.
func (m *AnswerMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("answer map: unsupported scan type %T", src)
	}
	decoded := make(map[string]string)
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("answer map: %w", err)
	}
	result := make(AnswerMap, len(decoded))
	for k, v := range decoded {
		q, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("answer map: invalid question index %q", k)
		}
		result[q] = v
	}
	*m = result
	return nil
}

// Questions returns the question indices in ascending order.
func (m AnswerMap) Questions() []int {
	keys := make([]int, 0, len(m))
	for q := range m {
		keys = append(keys, q)
	}
	sort.Ints(keys)
	return keys
}

// AnswerKeyRecord is the teacher's ground truth for one assessment.
type AnswerKeyRecord struct {
	AssessmentID   string    `db:"assessment_id" json:"assessment_uid" validate:"required"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id" validate:"required"`
	Answers        AnswerMap `db:"answers" json:"answers" validate:"required"`
	TotalQuestions int       `db:"total_questions" json:"total_questions" validate:"required,gt=0"`
	ImageURLs      ImageList `db:"image_urls" json:"image_urls"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Validate enforces the structural invariant: every answer index is a
// positive integer not exceeding the declared question count.
func (r *AnswerKeyRecord) Validate() error {
	for q := range r.Answers {
		if q < 1 || q > r.TotalQuestions {
			return fmt.Errorf("answer key %s: question index %d outside 1..%d", r.AssessmentID, q, r.TotalQuestions)
		}
	}
	return nil
}

// ImageList is a list of remote image references stored as JSONB. An empty
// (non-nil) list is persisted as [] so readers can tell "uploaded nothing"
// from "upload still pending".
type ImageList []string

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		l = ImageList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ImageList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*l = ImageList{}
		return nil
	default:
		return fmt.Errorf("image list: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, l)
}

package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/noah-isme/sheetgrader/internal/answer"
	"github.com/noah-isme/sheetgrader/internal/models"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// Extraction is the validated result of one OCR pass.
type Extraction struct {
	// ID is the assessment identifier (answer-key mode) or the student
	// identifier (student-sheet mode) read off the sheet.
	ID      string
	Answers models.AnswerMap
}

type rawExtraction struct {
	AssessmentUID string            `json:"assessment_uid"`
	StudentID     string            `json:"student_id"`
	Answers       map[string]string `json:"answers"`
}

// Sanitizer turns raw OCR output text into a validated structured record.
// It is pure and idempotent: sanitizing an already-sanitized record yields
// the same record.
type Sanitizer struct{}

// Sanitize strips code-fence markup, parses the JSON payload, checks the
// required fields and normalizes every answer value. All failures are data
// errors; nothing here is retried automatically.
func (Sanitizer) Sanitize(raw string, mode Mode) (*Extraction, error) {
	payload := stripFences(raw)

	var decoded rawExtraction
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "extraction is not valid JSON")
	}

	id := decoded.StudentID
	if mode == ModeAnswerKey {
		id = decoded.AssessmentUID
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ToLower(id) == answer.MissingID {
		return nil, appErrors.Clone(appErrors.ErrMalformedPayload, "sheet identifier missing or unreadable")
	}
	if len(decoded.Answers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMalformedPayload, "extraction contains no answers")
	}

	answers := make(models.AnswerMap, len(decoded.Answers))
	for key, value := range decoded.Answers {
		q, err := parseQuestionNumber(key)
		if err != nil {
			return nil, err
		}
		answers[q] = answer.Normalize(value)
	}

	return &Extraction{ID: id, Answers: answers}, nil
}

// parseQuestionNumber accepts both "7" and "Q7" key spellings.
func parseQuestionNumber(key string) (int, error) {
	trimmed := strings.TrimSpace(key)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "Q"), "q")
	q, err := strconv.Atoi(trimmed)
	if err != nil || q < 1 {
		return 0, appErrors.Clone(appErrors.ErrMalformedPayload, "invalid question number "+strconv.Quote(key))
	}
	return q, nil
}

// stripFences removes surrounding markdown code-fence markup when present,
// tolerating a language tag after the opening fence.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Package answer defines the shared vocabulary of answer values and the
// out-of-band sentinel markers the OCR extraction may emit.
package answer

import "strings"

// Sentinel markers. These are reserved lowercase values distinct from any
// real answer; they pass through normalization unchanged.
const (
	Unreadable      = "unreadable"
	MissingAnswer   = "missing_answer"
	MissingQuestion = "missing_question"
	Essay           = "essay_answer"
	MissingID       = "missing_id"
)

// IsSentinel reports whether v is one of the reserved non-answer markers.
func IsSentinel(v string) bool {
	switch v {
	case Unreadable, MissingAnswer, MissingQuestion, Essay, MissingID:
		return true
	}
	return false
}

// Normalize converts an answer value to its canonical comparison form.
// Multiple-choice letters and true/false values are uppercased ("a" -> "A",
// "true" -> "TRUE"). Sentinels stay lowercase. Enumeration answers keep their
// original casing. Normalize is idempotent.
func Normalize(v string) string {
	trimmed := strings.TrimSpace(v)
	if IsSentinel(strings.ToLower(trimmed)) {
		return strings.ToLower(trimmed)
	}
	if isChoiceLetter(trimmed) || isBooleanWord(trimmed) {
		return strings.ToUpper(trimmed)
	}
	return trimmed
}

func isChoiceLetter(v string) bool {
	if len(v) != 1 {
		return false
	}
	c := v[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isBooleanWord(v string) bool {
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
}

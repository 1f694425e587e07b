package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

func TestSanitizeStudentSheet(t *testing.T) {
	raw := "```json\n{\"student_id\":\"S-042\",\"answers\":{\"1\":\"a\",\"Q2\":\"true\",\"3\":\"UNREADABLE\"}}\n```"

	got, err := Sanitizer{}.Sanitize(raw, ModeStudentSheet)
	require.NoError(t, err)

	assert.Equal(t, "S-042", got.ID)
	assert.Equal(t, "A", got.Answers[1], "single letters are uppercased")
	assert.Equal(t, "TRUE", got.Answers[2], "booleans are uppercased, Q prefix stripped")
	assert.Equal(t, "unreadable", got.Answers[3], "sentinels are lowercased")
}

func TestSanitizeAnswerKeyUsesAssessmentUID(t *testing.T) {
	raw := `{"assessment_uid":"MATH-7A","answers":{"1":"B"}}`

	got, err := Sanitizer{}.Sanitize(raw, ModeAnswerKey)
	require.NoError(t, err)
	assert.Equal(t, "MATH-7A", got.ID)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	raw := `{"student_id":"S1","answers":{"1":"c","2":"essay_answer"}}`

	once, err := Sanitizer{}.Sanitize(raw, ModeStudentSheet)
	require.NoError(t, err)

	again := `{"student_id":"S1","answers":{"1":"C","2":"essay_answer"}}`
	twice, err := Sanitizer{}.Sanitize(again, ModeStudentSheet)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSanitizeRejectsMissingIdentifier(t *testing.T) {
	cases := map[string]string{
		"empty":    `{"student_id":"","answers":{"1":"A"}}`,
		"sentinel": `{"student_id":"missing_id","answers":{"1":"A"}}`,
		"absent":   `{"answers":{"1":"A"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Sanitizer{}.Sanitize(raw, ModeStudentSheet)
			require.Error(t, err)
			assert.Equal(t, appErrors.KindData, appErrors.KindOf(err))
		})
	}
}

func TestSanitizeRejectsGarbage(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       "the dog ate the sheet",
		"empty answers":  `{"student_id":"S1","answers":{}}`,
		"bad question":   `{"student_id":"S1","answers":{"zero":"A"}}`,
		"zero question":  `{"student_id":"S1","answers":{"0":"A"}}`,
		"negative index": `{"student_id":"S1","answers":{"-3":"A"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Sanitizer{}.Sanitize(raw, ModeStudentSheet)
			require.Error(t, err)
			assert.Equal(t, appErrors.KindData, appErrors.KindOf(err))
		})
	}
}

func TestStripFencesVariants(t *testing.T) {
	want := `{"a":1}`
	for name, raw := range map[string]string{
		"plain":     `{"a":1}`,
		"fenced":    "```\n{\"a\":1}\n```",
		"tagged":    "```json\n{\"a\":1}\n```",
		"padded":    "  ```json\n{\"a\":1}\n```  ",
		"same line": "```{\"a\":1}```",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, stripFences(raw))
		})
	}
}

package ocr

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

type scriptedTransport struct {
	calls   int
	results []error
	text    string
}

func (s *scriptedTransport) Extract(ctx context.Context, imagePath, prompt string) (string, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.text, nil
}

type countingObserver struct {
	attempts int
	failures int
}

func (o *countingObserver) OCRAttempt(err error) {
	o.attempts++
	if err != nil {
		o.failures++
	}
}

func TestExtractSucceedsOnThirdAttempt(t *testing.T) {
	transient := appErrors.Clone(appErrors.ErrOCRUnavailable, "flaky")
	transport := &scriptedTransport{
		results: []error{transient, transient, nil},
		text:    `{"student_id":"S1","answers":{"1":"A"}}`,
	}
	observer := &countingObserver{}
	client := NewClient(transport, 3, false, 0, observer, nil)

	text, err := client.Extract(context.Background(), "page.jpg", "prompt")
	require.NoError(t, err)
	assert.Contains(t, text, "S1")
	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, 3, observer.attempts)
	assert.Equal(t, 2, observer.failures)
}

func TestExtractExhaustsAttempts(t *testing.T) {
	transient := appErrors.Clone(appErrors.ErrOCRUnavailable, "down")
	transport := &scriptedTransport{results: []error{transient, transient, transient}}
	client := NewClient(transport, 3, false, 0, nil, nil)

	_, err := client.Extract(context.Background(), "page.jpg", "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, appErrors.KindNetwork, appErrors.KindOf(err))
}

func TestExtractStopsOnTerminalError(t *testing.T) {
	transport := &scriptedTransport{results: []error{
		appErrors.Clone(appErrors.ErrQuotaExceeded, ""),
	}}
	client := NewClient(transport, 3, true, 1, nil, nil)

	_, err := client.Extract(context.Background(), "page.jpg", "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, transport.calls, "terminal failure must not be retried")
	assert.Equal(t, appErrors.KindTerminal, appErrors.KindOf(err))
}

func TestExtractHonoursContextDuringBackoff(t *testing.T) {
	transient := appErrors.Clone(appErrors.ErrOCRUnavailable, "down")
	transport := &scriptedTransport{results: []error{transient, transient, transient}}
	client := NewClient(transport, 3, true, 0, nil, nil) // baseDelay defaults to 1s

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Extract(ctx, "page.jpg", "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, transport.calls)
}

func TestPromptsNameEverySentinel(t *testing.T) {
	for _, prompt := range []string{AnswerKeyPrompt(10), StudentSheetPrompt(10)} {
		for _, marker := range []string{"essay_answer", "unreadable", "missing_answer", "missing_question", "missing_id"} {
			assert.True(t, strings.Contains(prompt, marker), "prompt missing %s", marker)
		}
	}
	assert.Contains(t, AnswerKeyPrompt(10), "assessment_uid")
	assert.Contains(t, StudentSheetPrompt(10), "student_id")
}

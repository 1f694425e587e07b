package device

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleConfirmRejectsUnknownKeys(t *testing.T) {
	out := &bytes.Buffer{}
	console := NewConsole(strings.NewReader("x\nY\n"), out)

	choice, err := console.Confirm(context.Background(), "continue?", []Choice{
		{Key: "y", Label: "yes"},
		{Key: "n", Label: "no"},
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "y", choice.Key, "keys match case-insensitively")
	assert.Contains(t, out.String(), "unrecognized option: x")
}

func TestConsoleConfirmTimesOut(t *testing.T) {
	console := NewConsole(blockingReader{}, &bytes.Buffer{})

	_, err := console.Confirm(context.Background(), "continue?", []Choice{{Key: "y", Label: "yes"}}, 10*time.Millisecond)
	require.Error(t, err)
}

func TestConsoleReadLineOnClosedStream(t *testing.T) {
	console := NewConsole(strings.NewReader(""), &bytes.Buffer{})

	_, err := console.ReadLine(context.Background(), "name:", time.Second)
	require.Error(t, err)
}

func TestFileScannerChecksPathExists(t *testing.T) {
	console := NewConsole(strings.NewReader("/definitely/not/here.jpg\n"), &bytes.Buffer{})
	scanner := NewFileScanner(console, time.Second)

	_, err := scanner.CapturePage(context.Background())
	require.Error(t, err)
}

// blockingReader never yields a line, simulating an operator who walked away.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}

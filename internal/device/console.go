package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// Console implements Prompter and Display over stdin/stdout. It is the
// development and bench-test device; the production kiosk swaps in the
// keypad/LCD drivers behind the same interfaces.
type Console struct {
	out   io.Writer
	lines chan string
}

// NewConsole starts a single reader goroutine over the input stream so
// concurrent prompts never compete for partial lines.
func NewConsole(in io.Reader, out io.Writer) *Console {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	c := &Console{out: out, lines: make(chan string)}
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			c.lines <- strings.TrimSpace(scanner.Text())
		}
		close(c.lines)
	}()
	return c
}

// Show renders status lines to the operator.
func (c *Console) Show(lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(c.out, line)
	}
}

// ReadLine reads one line within the bounded window.
func (c *Console) ReadLine(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	fmt.Fprintf(c.out, "%s ", prompt)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", appErrors.Clone(appErrors.ErrCaptureTimeout, "input timed out")
	case line, ok := <-c.lines:
		if !ok {
			return "", appErrors.Clone(appErrors.ErrInvalidInput, "input stream closed")
		}
		return line, nil
	}
}

// Confirm presents the options and keeps asking until a valid key arrives or
// the window closes.
func (c *Console) Confirm(ctx context.Context, message string, options []Choice, timeout time.Duration) (Choice, error) {
	labels := make([]string, 0, len(options))
	for _, opt := range options {
		labels = append(labels, fmt.Sprintf("[%s] %s", opt.Key, opt.Label))
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Choice{}, appErrors.Clone(appErrors.ErrCaptureTimeout, "confirmation timed out")
		}
		answer, err := c.ReadLine(ctx, message+" "+strings.Join(labels, " "), remaining)
		if err != nil {
			return Choice{}, err
		}
		for _, opt := range options {
			if strings.EqualFold(answer, opt.Key) {
				return opt, nil
			}
		}
		c.Show("unrecognized option: " + answer)
	}
}

// FileScanner simulates the page-capture capability by asking the operator
// for the path of an existing image file. Used on development benches where
// no physical scanner is attached.
type FileScanner struct {
	prompter Prompter
	timeout  time.Duration
}

// NewFileScanner builds a simulated scanner over the given prompter.
func NewFileScanner(prompter Prompter, timeout time.Duration) *FileScanner {
	return &FileScanner{prompter: prompter, timeout: timeout}
}

// CapturePage prompts for an image path and verifies it exists.
func (s *FileScanner) CapturePage(ctx context.Context) (string, error) {
	path, err := s.prompter.ReadLine(ctx, "image path:", s.timeout)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", appErrors.Clone(appErrors.ErrScannerFailed, "empty path")
	}
	if _, err := os.Stat(path); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrScannerFailed.Code, appErrors.KindHardware, "page file not found")
	}
	return path, nil
}

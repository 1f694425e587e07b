// Package device reduces the kiosk hardware to capability interfaces. The
// pipeline depends only on these; drivers for the real scanner, keypad and
// LCD live with the hardware integration, outside this module.
package device

import (
	"context"
	"time"
)

// Choice is one selectable option in a bounded menu.
type Choice struct {
	Key   string
	Label string
}

// Scanner produces the next page image and returns its local file path.
// The implementation owns hardware timing and debounce.
type Scanner interface {
	CapturePage(ctx context.Context) (string, error)
}

// Prompter blocks on operator input within a bounded window.
type Prompter interface {
	// Confirm presents a bounded choice set and returns the selected option.
	Confirm(ctx context.Context, message string, options []Choice, timeout time.Duration) (Choice, error)
	// ReadLine reads one free-form line (numeric input, identifiers).
	ReadLine(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// Display renders short status lines to the operator.
type Display interface {
	Show(lines ...string)
}

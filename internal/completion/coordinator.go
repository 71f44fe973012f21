// Package completion holds the shared "enter actual time spent, then mark
// complete" workflow. One Coordinator serves every view; a view binds a
// resource to it by passing a Command to Open.
//
// The coordinator has capacity one: a second Open before the first request
// is submitted or closed silently replaces the pending command.
package completion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ValidationMessage is shown while the entered value is not a positive integer
const ValidationMessage = "Enter the time spent as a positive number of minutes"

var (
	ErrInvalidTime = errors.New("invalid time spent")
	ErrNotOpen     = errors.New("completion request is not open")
)

// Command binds a completion request to one resource
type Command struct {
	ResourceID string
	OnConfirm  func(minutes int)
}

func noop(int) {}

// Coordinator is the single-slot completion request
type Coordinator struct {
	mu         sync.Mutex
	open       bool
	input      string
	validation string
	pending    Command
	logger     *zap.Logger
}

// New creates a closed Coordinator
func New(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{logger: logger}
	c.resetLocked()
	return c
}

// Open stores cmd as the pending command and opens the request.
// A request already open is replaced.
func (c *Coordinator) Open(cmd Command) {
	if cmd.OnConfirm == nil {
		cmd.OnConfirm = noop
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		c.logger.Warn("completion request replaced",
			zap.String("previous", c.pending.ResourceID),
			zap.String("resource", cmd.ResourceID))
	}

	c.pending = cmd
	c.open = true
	c.input = ""
	c.validation = ""
	c.logger.Debug("completion request opened", zap.String("resource", cmd.ResourceID))
}

// SetInput records the raw entry; validation waits for Submit
func (c *Coordinator) SetInput(value string) {
	c.mu.Lock()
	c.input = value
	c.mu.Unlock()
}

// Submit validates the input and, when it is a positive integer, closes the
// request and hands the minutes to the pending command.
func (c *Coordinator) Submit() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrNotOpen
	}

	minutes, err := ParseMinutes(c.input)
	if err != nil {
		c.validation = ValidationMessage
		c.mu.Unlock()
		c.logger.Debug("completion input rejected", zap.Error(err))
		return err
	}

	cmd := c.pending
	c.resetLocked()
	c.mu.Unlock()

	c.logger.Debug("completion submitted",
		zap.String("resource", cmd.ResourceID),
		zap.Int("minutes", minutes))
	cmd.OnConfirm(minutes)
	return nil
}

// Close discards the pending request without invoking it
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// IsOpen reports whether a request is pending
func (c *Coordinator) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Input returns the raw entry
func (c *Coordinator) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// ResourceID returns the resource of the pending request, or "" when closed
func (c *Coordinator) ResourceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.ResourceID
}

// Validation returns the message left by the last rejected Submit
func (c *Coordinator) Validation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validation
}

func (c *Coordinator) resetLocked() {
	c.open = false
	c.input = ""
	c.validation = ""
	c.pending = Command{OnConfirm: noop}
}

// ParseMinutes accepts a base-10 integer greater than zero
func ParseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidTime, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidTime, n)
	}
	return n, nil
}

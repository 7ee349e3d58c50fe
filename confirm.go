package verb_traj

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
)

// Confirmer asks an operator whether to go ahead with a motion.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// AutoConfirmer gives the same answer every time.
type AutoConfirmer struct {
	Answer bool
}

func (a AutoConfirmer) Confirm(context.Context, string) (bool, error) {
	return a.Answer, nil
}

// TerminalConfirmer asks on the controlling terminal.
type TerminalConfirmer struct{}

func (TerminalConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ErrNoPendingConfirmation is returned when an answer arrives while nothing is waiting.
var ErrNoPendingConfirmation = errors.New("no confirmation pending")

// CommandConfirmer waits for an answer delivered from elsewhere, such as a
// DoCommand. No answer within Timeout counts as a refusal.
type CommandConfirmer struct {
	Timeout time.Duration

	mu      sync.Mutex
	pending chan bool
	prompt  string
}

func NewCommandConfirmer(timeout time.Duration) *CommandConfirmer {
	return &CommandConfirmer{Timeout: timeout}
}

func (c *CommandConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer := make(chan bool, 1)
	c.mu.Lock()
	c.pending = answer
	c.prompt = prompt
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == answer {
			c.pending = nil
			c.prompt = ""
		}
		c.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ok := <-answer:
		return ok, nil
	case <-timeout:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Deliver answers the pending confirmation.
func (c *CommandConfirmer) Deliver(ok bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrNoPendingConfirmation
	}
	c.pending <- ok
	c.pending = nil
	c.prompt = ""
	return nil
}

// Pending returns the prompt being waited on, if any.
func (c *CommandConfirmer) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt, c.pending != nil
}

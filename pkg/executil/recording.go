package executil

import (
	"context"
	"sync"
)

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors to control results.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []Command

	// Outputs maps a command line (Command.String) to what it writes to
	// stdout.
	Outputs map[string][]byte

	// Errors maps a command line (Command.String) to its error.
	Errors map[string]error
}

// Exec records c and returns the configured output and error.
func (e *RecordingExecutor) Exec(_ context.Context, c Command) error {
	e.mu.Lock()
	e.Commands = append(e.Commands, c)
	out := e.Outputs[c.String()]
	err := e.Errors[c.String()]
	e.mu.Unlock()

	if c.Stdout != nil && len(out) > 0 {
		_, _ = c.Stdout.Write(out)
	}
	return err
}

// Recorded returns a copy of the commands run so far.
func (e *RecordingExecutor) Recorded() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Command(nil), e.Commands...)
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}

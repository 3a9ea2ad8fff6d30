// Package executil provides shell execution utilities.
package executil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one process to run.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env is appended to the parent environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Shell returns a command that runs script with `sh -c`.
func Shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

// String renders the command line, for logs and test lookups.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Executor runs commands.
type Executor interface {
	// Exec runs c to completion, streaming output to c.Stdout and c.Stderr.
	Exec(ctx context.Context, c Command) error
}

// RealExecutor runs actual processes.
type RealExecutor struct{}

// Exec runs c to completion.
func (e *RealExecutor) Exec(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exec %s: %w", c.Name, err)
	}
	return nil
}

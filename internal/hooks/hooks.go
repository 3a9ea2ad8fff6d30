// Package hooks runs user-configured shell commands for received messages.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/styles"
	"github.com/hay-kot/ntfyc/pkg/executil"
	"github.com/hay-kot/ntfyc/pkg/tmpl"
)

// Runner executes the hooks whose pattern matches a message's topic.
type Runner struct {
	log      zerolog.Logger
	executor executil.Executor
	hooks    []config.Hook
	stdout   io.Writer
	stderr   io.Writer
}

// NewRunner creates a Runner for the given hooks.
func NewRunner(log zerolog.Logger, executor executil.Executor, hooks []config.Hook, stdout, stderr io.Writer) *Runner {
	return &Runner{
		log:      log,
		executor: executor,
		hooks:    hooks,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// Match reports whether topic matches the doublestar glob pattern.
func Match(pattern, topic string) (bool, error) {
	return doublestar.Match(pattern, topic)
}

// Run executes every command of every hook matching msg.Topic, in config
// order. A failing command is logged and the rest still run; the joined
// failures are returned.
func (r *Runner) Run(ctx context.Context, msg messaging.Message) error {
	if len(r.hooks) == 0 {
		return nil
	}

	data := config.HookTemplateData{
		ID:      msg.ID,
		Topic:   msg.Topic,
		Message: msg.Message,
		Title:   msg.Title,
		Time:    msg.CreatedAt(),
	}

	var errs []error
	hookNum := 0
	for _, hook := range r.hooks {
		matched, err := Match(hook.Pattern, msg.Topic)
		if err != nil {
			r.log.Warn().Err(err).Str("pattern", hook.Pattern).Msg("invalid hook pattern")
			errs = append(errs, fmt.Errorf("match pattern %q: %w", hook.Pattern, err))
			continue
		}

		r.log.Debug().
			Str("pattern", hook.Pattern).
			Str("topic", msg.Topic).
			Bool("matched", matched).
			Msg("hook pattern evaluated")

		if !matched {
			continue
		}

		hookNum++

		for i, raw := range hook.Commands {
			script, err := tmpl.Render(raw, data)
			if err != nil {
				r.log.Warn().Err(err).Str("pattern", hook.Pattern).Msg("failed to render hook command")
				errs = append(errs, fmt.Errorf("render hook %q command %d: %w", hook.Pattern, i, err))
				continue
			}

			r.printCommandHeader(hookNum, i+1, len(hook.Commands), script)

			cmd := executil.Shell(script)
			cmd.Stdout = r.stdout
			cmd.Stderr = r.stderr
			cmd.Env = env(msg)

			if err := r.executor.Exec(ctx, cmd); err != nil {
				r.log.Warn().Err(err).Str("pattern", hook.Pattern).Str("command", script).Msg("hook command failed")
				errs = append(errs, fmt.Errorf("run hook %q command %q: %w", hook.Pattern, script, err))
			}
		}
	}

	return errors.Join(errs...)
}

// env exposes the message to hook commands without templating.
func env(msg messaging.Message) []string {
	return []string{
		"NTFY_ID=" + msg.ID,
		"NTFY_TOPIC=" + msg.Topic,
		"NTFY_MESSAGE=" + msg.Message,
		"NTFY_TITLE=" + msg.Title,
		fmt.Sprintf("NTFY_TIME=%d", msg.Time),
	}
}

// printCommandHeader prints a styled header for a hook command.
func (r *Runner) printCommandHeader(hookNum, cmdNum, totalCmds int, cmd string) {
	if r.stdout == nil {
		return
	}

	divider := styles.DividerStyle.Render(strings.Repeat("─", 50))
	header := styles.CommandHeaderStyle.Render(fmt.Sprintf("hook %d", hookNum))
	cmdLabel := styles.DividerStyle.Render(fmt.Sprintf("[%d/%d]", cmdNum, totalCmds))
	command := styles.CommandStyle.Render(cmd)

	_, _ = fmt.Fprintln(r.stdout, divider)
	_, _ = fmt.Fprintf(r.stdout, "%s %s %s\n", header, cmdLabel, command)
	_, _ = fmt.Fprintln(r.stdout, divider)
}

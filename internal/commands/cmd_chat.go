package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/ntfyc/internal/tui"
)

type ChatCmd struct {
	flags *Flags
}

// NewChatCmd creates a new chat command
func NewChatCmd(flags *Flags) *ChatCmd {
	return &ChatCmd{
		flags: flags,
	}
}

// Register adds the chat command to the application
func (cmd *ChatCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "chat",
		Usage:     "Open the interactive chat view",
		UsageText: "ntfyc chat [topic]",
		Description: `Opens a full-screen view that shows messages on a topic as they arrive
and publishes whatever you type.

Without a topic, the last topic used on this server is reopened, falling
back to the configured default. This is also what running ntfyc with no
command does.`,
		Action: cmd.run,
	})

	return app
}

// Run executes the chat view. Exported for use as default command.
func (cmd *ChatCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *ChatCmd) run(ctx context.Context, c *cli.Command) error {
	svc := cmd.flags.Service

	topic := c.Args().First()
	if topic == "" {
		topic = svc.StartTopic(ctx)
	}

	relay := tui.NewRelay()
	sess := svc.NewSession(topic, relay.Dispatch)
	defer sess.Close()

	m := tui.New(sess, relay, tui.Options{
		Host:        svc.Host(),
		Markdown:    cmd.flags.Config.TUI.Markdown,
		SendTimeout: cmd.flags.Config.Send.Timeout,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	relay.Attach(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}

	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/ntfyc/internal/app"
	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/styles"
)

type SubCmd struct {
	flags *Flags

	format  string
	limit   int
	noHooks bool
}

// NewSubCmd creates a new sub command.
func NewSubCmd(flags *Flags) *SubCmd {
	return &SubCmd{flags: flags}
}

// Register adds the sub command to the application.
func (cmd *SubCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sub",
		Aliases:   []string{"subscribe"},
		Usage:     "Stream messages from a topic",
		UsageText: "ntfyc sub [options] [topic]",
		Description: `Subscribes to a topic and prints every message as it arrives.

Without a topic the configured default is used. Output is one JSON object per
line unless --format text is given. Configured hooks run for each message
unless --no-hooks is set; their output goes to stderr.

Runs until interrupted, until --limit messages were received, or until the
server closes the stream.

Examples:
  ntfyc sub alerts
  ntfyc sub alerts --format text
  ntfyc sub deploys -n 1            # wait for the next message and exit`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (json, text)",
				Value:       "json",
				Destination: &cmd.format,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "exit after N messages (0 = no limit)",
				Destination: &cmd.limit,
			},
			&cli.BoolFlag{
				Name:        "no-hooks",
				Usage:       "do not run configured hooks",
				Destination: &cmd.noHooks,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SubCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.format != "json" && cmd.format != "text" {
		return fmt.Errorf("invalid format %q: must be json or text", cmd.format)
	}

	topic := cmd.flags.Config.Topic
	if c.NArg() > 0 {
		topic = c.Args().First()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	write := cmd.writer(c.Root().Writer)

	return cmd.flags.Service.Subscribe(ctx, topic, app.SubscribeOptions{
		RunHooks: !cmd.noHooks,
		Limit:    cmd.limit,
	}, write)
}

func (cmd *SubCmd) writer(w io.Writer) func(messaging.Message) error {
	if cmd.format == "text" {
		return func(msg messaging.Message) error {
			_, err := fmt.Fprintln(w, formatText(msg))
			return err
		}
	}

	enc := json.NewEncoder(w)
	return func(msg messaging.Message) error {
		return enc.Encode(msg)
	}
}

// formatText renders a message as a single human-readable line.
func formatText(msg messaging.Message) string {
	line := styles.TimestampStyle.Render(msg.CreatedAt().Format("15:04:05")) + " " +
		styles.TopicStyle.Render(msg.Topic) + " "
	if msg.Title != "" {
		line += msg.Title + ": "
	}
	return line + msg.Message
}

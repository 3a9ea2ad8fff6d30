package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/ntfyc/internal/printer"
)

// maxStdinBytes bounds how much of stdin pub will read.
const maxStdinBytes = 1 << 20

type PubCmd struct {
	flags *Flags

	file  string
	quiet bool

	// stdin is swapped in tests.
	stdin *os.File
}

// NewPubCmd creates a new pub command.
func NewPubCmd(flags *Flags) *PubCmd {
	return &PubCmd{flags: flags, stdin: os.Stdin}
}

// Register adds the pub command to the application.
func (cmd *PubCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "pub",
		Aliases:   []string{"publish", "send"},
		Usage:     "Publish a message to a topic",
		UsageText: "ntfyc pub [options] <topic> [message...]",
		Description: `Publishes a message to the given topic on the configured server.

The message can be provided as:
- Remaining command-line arguments (joined with spaces)
- From a file with -f/--file
- From stdin when it is not a terminal

Examples:
  ntfyc pub alerts "Backup finished"
  echo "Deploy done" | ntfyc pub deploys
  ntfyc pub logs -f build.log`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read message from file",
				Destination: &cmd.file,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "do not print a confirmation",
				Destination: &cmd.quiet,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *PubCmd) run(ctx context.Context, c *cli.Command) error {
	if c.NArg() < 1 {
		return fmt.Errorf("topic is required. Usage: %s", c.UsageText)
	}

	topic := c.Args().First()

	message, err := cmd.message(c.Args().Tail())
	if err != nil {
		return err
	}

	if err := cmd.flags.Service.Publish(ctx, topic, message); err != nil {
		return err
	}

	if !cmd.quiet {
		printer.Ctx(ctx).Successf("Published to %s", topic)
	}
	return nil
}

// message resolves the message body from args, --file or stdin, in that
// order.
func (cmd *PubCmd) message(args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case cmd.file != "":
		data, err := os.ReadFile(cmd.file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	case cmd.stdin != nil && !term.IsTerminal(int(cmd.stdin.Fd())):
		data, err := io.ReadAll(io.LimitReader(cmd.stdin, maxStdinBytes))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return "", fmt.Errorf("no message given: pass it as an argument, with --file, or on stdin")
	}
}

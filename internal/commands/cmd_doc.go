package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"
)

type DocCmd struct {
	flags *Flags
}

func NewDocCmd(flags *Flags) *DocCmd {
	return &DocCmd{flags: flags}
}

func (cmd *DocCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "doc",
		Usage: "Reference documentation",
		Description: `Prints reference documentation for ntfyc.

Use 'ntfyc doc config' for an annotated example configuration file.
Use 'ntfyc doc hooks' for the variables available to hook commands.`,
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Show an annotated example configuration",
				Action: cmd.runConfig,
			},
			{
				Name:   "hooks",
				Usage:  "Show hook template variables and environment",
				Action: cmd.runHooks,
			},
		},
	})
	return app
}

func (cmd *DocCmd) runConfig(_ context.Context, c *cli.Command) error {
	_, err := io.WriteString(c.Root().Writer, exampleConfig)
	return err
}

func (cmd *DocCmd) runHooks(_ context.Context, c *cli.Command) error {
	printHooksGuide(c.Root().Writer)
	return nil
}

// exampleConfig documents every option. It must stay loadable by
// config.Load.
const exampleConfig = `# ntfyc configuration
# Location: $XDG_CONFIG_HOME/ntfyc/config.yaml (override with --config)

# Base URL of the ntfy server. NTFYC_HOST or --host override it.
host: https://ntfy.sh

# Topic used by 'sub' and the chat view when none is given.
topic: mytopic

send:
  # Treat any non-2xx response as a failed send.
  strict_status: true
  # Upper bound for a single publish. 0 disables the limit.
  timeout: 30s

tui:
  # Render message bodies as markdown in the chat view.
  markdown: true
  # Messages kept in the chat view; the oldest are dropped first. 0 keeps all.
  max_messages: 500

# Hooks run shell commands for messages received by 'ntfyc sub'.
# pattern is a glob matched against the topic name.
hooks:
  - pattern: "alerts*"
    commands:
      - notify-send {{ .Title | shq }} {{ .Message | oneline | shq }}
`

func printHooksGuide(w io.Writer) {
	guide := `# Hooks

Hooks run for every message 'ntfyc sub' receives on a topic matching the
hook's pattern. Each command is a Go template rendered per message and run
with ` + "`sh -c`" + `. A failing command is logged; later commands still run.

## Patterns

Patterns use glob syntax against the topic name:

| Pattern      | Matches                 |
|--------------|-------------------------|
| ` + "`alerts`" + `     | only alerts             |
| ` + "`alerts*`" + `    | alerts, alerts-prod     |
| ` + "`*`" + `          | every topic             |
| ` + "`{ci,cd}-*`" + `  | ci-main, cd-staging     |

## Template Variables

| Variable       | Description                      |
|----------------|----------------------------------|
| ` + "`.ID`" + `          | Message ID assigned by server    |
| ` + "`.Topic`" + `       | Topic the message arrived on     |
| ` + "`.Message`" + `     | Message body                     |
| ` + "`.Title`" + `       | Title, empty if none             |
| ` + "`.Time`" + `        | Server timestamp (time.Time)     |

## Template Functions

| Function       | Description                      |
|----------------|----------------------------------|
| ` + "`shq`" + `          | Shell-quote a string             |
| ` + "`trunc N`" + `      | Cut a string to N characters     |
| ` + "`oneline`" + `      | Collapse newlines to spaces      |

## Environment

Commands also receive NTFY_ID, NTFY_TOPIC, NTFY_MESSAGE, NTFY_TITLE and
NTFY_TIME (unix seconds), which avoids quoting issues entirely:

` + "```yaml" + `
hooks:
  - pattern: "*"
    commands:
      - echo "$NTFY_TOPIC: $NTFY_MESSAGE" >> ~/ntfy.log
` + "```" + `
`
	_, _ = fmt.Fprint(w, guide)
}

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/ntfyc/internal/core/messaging"
	"github.com/hay-kot/ntfyc/internal/printer"
)

type ActivityCmd struct {
	flags *Flags

	last   int
	since  time.Duration
	topic  string
	failed bool
}

// NewActivityCmd creates a new activity command.
func NewActivityCmd(flags *Flags) *ActivityCmd {
	return &ActivityCmd{flags: flags}
}

// Register adds the activity command to the application.
func (cmd *ActivityCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "activity",
		Usage:     "Show recent publishes and connections",
		UsageText: "ntfyc activity [options]",
		Description: `Lists recorded activity, newest first. Message bodies are never stored;
only the kind of event, the topic, and any error are kept.

Examples:
  ntfyc activity
  ntfyc activity --since 1h --failed
  ntfyc activity --topic alerts -n 5`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "number of entries to show (0 = all)",
				Value:       20,
				Destination: &cmd.last,
			},
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "only show entries newer than this, e.g. 1h",
				Destination: &cmd.since,
			},
			&cli.StringFlag{
				Name:        "topic",
				Usage:       "only show entries for this topic",
				Destination: &cmd.topic,
			},
			&cli.BoolFlag{
				Name:        "failed",
				Usage:       "only show failed entries",
				Destination: &cmd.failed,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ActivityCmd) run(ctx context.Context, c *cli.Command) error {
	var since time.Time
	if cmd.since > 0 {
		since = time.Now().Add(-cmd.since)
	}

	// Filters apply after the store limit, so fetch everything when filtering.
	limit := cmd.last
	if cmd.topic != "" || cmd.failed {
		limit = 0
	}

	entries, err := cmd.flags.Service.Activity(limit, since)
	if err != nil {
		return fmt.Errorf("list activity: %w", err)
	}

	entries = filterActivity(entries, cmd.topic, cmd.failed, cmd.last)

	if len(entries) == 0 {
		printer.Ctx(ctx).Infof("No activity")
		return nil
	}

	return writeActivity(c.Root().Writer, entries)
}

// filterActivity keeps entries matching topic (when set) and, if failedOnly,
// entries that recorded an error. At most limit entries are kept; 0 keeps all.
func filterActivity(entries []messaging.Activity, topic string, failedOnly bool, limit int) []messaging.Activity {
	out := entries[:0:0]
	for _, a := range entries {
		if topic != "" && a.Topic != topic {
			continue
		}
		if failedOnly && !a.Failed() {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func writeActivity(out io.Writer, entries []messaging.Activity) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tTYPE\tTOPIC\tSTATUS")

	for _, a := range entries {
		status := printer.StatusOK()
		if a.Failed() {
			status = printer.StatusFailed(truncate(a.Error, 60))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.Timestamp.Local().Format("2006-01-02 15:04:05"),
			a.Type,
			a.Topic,
			status,
		)
	}

	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

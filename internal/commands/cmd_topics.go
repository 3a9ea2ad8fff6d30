package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/ntfyc/internal/printer"
)

type TopicsCmd struct {
	flags *Flags

	clear bool
}

// NewTopicsCmd creates a new topics command.
func NewTopicsCmd(flags *Flags) *TopicsCmd {
	return &TopicsCmd{flags: flags}
}

// Register adds the topics command to the application.
func (cmd *TopicsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "topics",
		Usage:     "View or clear recently used topics",
		UsageText: "ntfyc topics [options]",
		Description: `Lists topics opened in the chat view, most recent first.

The chat view starts on the most recent topic for the current server.
Use --clear to forget all of them.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "clear",
				Aliases:     []string{"c"},
				Usage:       "forget all recent topics",
				Destination: &cmd.clear,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TopicsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if cmd.clear {
		if err := cmd.flags.Service.ClearRecentTopics(ctx); err != nil {
			return fmt.Errorf("clear topics: %w", err)
		}
		p.Successf("Recent topics cleared")
		return nil
	}

	entries, err := cmd.flags.Service.RecentTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	if len(entries) == 0 {
		p.Infof("No recent topics")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOPIC\tHOST\tUSES\tLAST USED")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.Topic,
			e.Host,
			e.Uses,
			e.LastUsed.Local().Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

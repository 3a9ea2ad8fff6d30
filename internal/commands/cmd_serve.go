package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/ntfyc/internal/devserver"
	"github.com/hay-kot/ntfyc/internal/printer"
)

type ServeCmd struct {
	flags *Flags

	addr      string
	keepalive time.Duration
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run a local ntfy-compatible server for development",
		UsageText: "ntfyc serve [options]",
		Description: `Starts an in-memory broker speaking the ntfy publish and JSON stream
protocol. Messages are not stored; only currently connected subscribers
receive them.

Point the client at it with --host or NTFYC_HOST:
  ntfyc serve --addr :8080
  NTFYC_HOST=http://localhost:8080 ntfyc sub mytopic`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "address to listen on",
				Value:       "127.0.0.1:8080",
				Destination: &cmd.addr,
			},
			&cli.DurationFlag{
				Name:        "keepalive",
				Usage:       "interval between keepalive records on idle streams",
				Value:       45 * time.Second,
				Destination: &cmd.keepalive,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(
		devserver.WithKeepalive(cmd.keepalive),
		devserver.WithLogger(log.With().Str("component", "devserver").Logger()),
	)

	printer.Ctx(ctx).Infof("Serving on http://%s (Ctrl+C to stop)", cmd.addr)

	return srv.ListenAndServe(ctx, cmd.addr)
}

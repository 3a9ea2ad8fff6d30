package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	ntfyapp "github.com/hay-kot/ntfyc/internal/app"
	"github.com/hay-kot/ntfyc/internal/commands"
	"github.com/hay-kot/ntfyc/internal/core/config"
	"github.com/hay-kot/ntfyc/internal/core/validate"
	"github.com/hay-kot/ntfyc/internal/ntfy"
	"github.com/hay-kot/ntfyc/internal/printer"
	"github.com/hay-kot/ntfyc/internal/store/jsonfile"
	"github.com/hay-kot/ntfyc/pkg/executil"
	"github.com/hay-kot/ntfyc/pkg/utils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

// maxRecentTopics bounds the recent topics file.
const maxRecentTopics = 50

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", "", nil); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	var deferredLogs *utils.DeferredWriter

	app := &cli.Command{
		Name:      "ntfyc",
		Usage:     "Publish and subscribe to ntfy topics",
		UsageText: "ntfyc [global options] command [command options]",
		Description: `ntfyc is a client for ntfy-compatible notification servers.

Run 'ntfyc' with no arguments to open the interactive chat view.
Run 'ntfyc pub <topic> <message>' to publish from scripts.
Run 'ntfyc sub <topic>' to stream messages and run hooks.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("NTFYC_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("NTFYC_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("NTFYC_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("NTFYC_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "server base URL, overrides the config file",
				Sources:     cli.EnvVars("NTFYC_HOST", "HOST_NAME"),
				Destination: &flags.Host,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// No subcommand, or chat, means the full-screen view
			isTUI := c.Args().Len() == 0 || c.Args().First() == "chat"

			// In TUI mode, buffer logs to display after exit
			var deferred io.Writer
			if isTUI {
				deferredLogs = &utils.DeferredWriter{}
				deferred = deferredLogs
			}

			if err := setupLogger(flags.LogLevel, flags.LogFile, deferred); err != nil {
				return ctx, err
			}

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			if flags.Host != "" {
				if _, err := validate.Host(flags.Host); err != nil {
					return ctx, fmt.Errorf("--host: %w", err)
				}
				cfg.Host = validate.NormalizeHost(flags.Host)
			}
			flags.Config = cfg

			opts := []ntfy.Option{
				ntfy.WithLogger(log.With().Str("component", "ntfy").Logger()),
				ntfy.WithSendTimeout(cfg.Send.Timeout),
			}
			if !cfg.Send.StrictStatus {
				opts = append(opts, ntfy.WithLenientStatus())
			}

			client, err := ntfy.New(cfg.Host, opts...)
			if err != nil {
				return ctx, err
			}
			flags.Client = client

			var (
				activity = jsonfile.NewActivityStore(cfg.ActivityFile())
				topics   = jsonfile.NewHistoryStore(cfg.HistoryFile(), maxRecentTopics)
				exec     = &executil.RealExecutor{}
				logger   = log.With().Str("component", "ntfyc").Logger()
			)

			// Hook output goes to stderr so 'sub --format json' keeps stdout clean.
			flags.Service = ntfyapp.New(cfg, client, activity, topics, exec, logger, os.Stderr, os.Stderr)
			return ctx, nil
		},
	}

	chatCmd := commands.NewChatCmd(flags)

	app = chatCmd.Register(app)
	app = commands.NewPubCmd(flags).Register(app)
	app = commands.NewSubCmd(flags).Register(app)
	app = commands.NewTopicsCmd(flags).Register(app)
	app = commands.NewActivityCmd(flags).Register(app)
	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)
	app = commands.NewDocCmd(flags).Register(app)

	// Open the chat view when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'ntfyc --help' for usage", c.Args().First())
		}
		return chatCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	if flags.Client != nil {
		flags.Client.Close()
	}

	// Flush deferred logs to console after the chat view exits
	if deferredLogs != nil {
		if err := deferredLogs.Flush(zerolog.ConsoleWriter{Out: os.Stderr}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}

	os.Exit(exitCode)
}

func setupLogger(level string, logFile string, deferred io.Writer) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		if deferred != nil {
			output = io.MultiWriter(file, deferred)
		} else {
			output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
		}
	} else if deferred != nil {
		output = deferred
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}

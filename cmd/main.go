package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesm/github-issue-archive/config"
)

// app holds state shared by every command
type app struct {
	configPath string
	logger     *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{logger: newLogger("info", "text")}
	err := a.rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		a.logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "issue-archive",
		Short: "Archive GitHub issues into SQLite and a static page",
		Long: `issue-archive mirrors the issues of configured GitHub repositories into a
local SQLite database and renders them as a single self-contained HTML page.

The GitHub token can be provided via the ` + config.EnvGithubToken + ` environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is normal
			if err := godotenv.Load(); err == nil {
				a.logger.Debug("Loaded environment from .env")
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Path to configuration file")

	root.AddCommand(
		a.syncCommand(),
		a.renderCommand(),
		a.autoCommand(),
		a.statusCommand(),
		a.initCommand(),
		a.addRepoCommand(),
	)
	return root
}

// loadConfig reads the config file and reconfigures the logger from it
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	configureLogger(a.logger, cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	configureLogger(logger, level, format)
	return logger
}

func configureLogger(logger *logrus.Logger, level, format string) {
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

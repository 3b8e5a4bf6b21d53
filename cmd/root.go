package cmd

import (
	"io"
	"os"
	"time"

	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/retry"
	"github.com/CircleCI-Public/ssh-deploy-keys/settings"
	"github.com/CircleCI-Public/ssh-deploy-keys/shell"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute adds all child commands to the root command and runs it. It is
// called by main.main(). The returned error has already been logged.
func Execute() error {
	err := MakeCommands().Execute()
	if err != nil {
		logger.NewLogger(false).Error("", err)
	}
	return err
}

// environment is everything the commands touch outside the process.
type environment struct {
	runner    shell.Runner
	fs        afero.Fs
	stdin     io.Reader
	stdout    io.Writer
	sleep     func(time.Duration)
	newLogger func(debug bool) *logger.Logger
}

func defaultEnvironment() *environment {
	return &environment{
		runner:    shell.Exec{},
		fs:        settings.FS.Fs,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		sleep:     time.Sleep,
		newLogger: logger.NewLogger,
	}
}

// policy is the retry policy for the global git configuration.
func (e *environment) policy(log *logger.Logger) retry.Policy {
	p := retry.Default(log)
	p.Sleep = e.sleep
	return p
}

// MakeCommands creates the top level commands
func MakeCommands() *cobra.Command {
	return makeCommands(defaultEnvironment())
}

func makeCommands(env *environment) *cobra.Command {
	cfg := settings.Default()
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ssh-deploy-keys",
		Short: "Per-repository SSH deploy keys for CI jobs.",
		Long: `Load SSH private keys into an agent for the rest of a CI job.

Keys whose comment names a GitHub repository become deploy keys: git is
configured to reach that repository, and only that repository, with that
key. Run "setup" before the steps that need the keys and "cleanup" after them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd, cfg, configPath)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	cfg.BindFlags(flags)

	rootCmd.AddCommand(newSetupCommand(cfg, env))
	rootCmd.AddCommand(newCleanupCommand(cfg, env, &configPath))
	rootCmd.AddCommand(newListCommand(cfg, env))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig reads the config file and the environment into cfg. Load
// overwrites what the flags wrote, so explicitly set flags are applied again.
func loadConfig(cmd *cobra.Command, cfg *settings.Config, path string) error {
	changed := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	loadErr := cfg.Load(path)
	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	return loadErr
}

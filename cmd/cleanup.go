package cmd

import (
	"github.com/CircleCI-Public/ssh-deploy-keys/agent"
	"github.com/CircleCI-Public/ssh-deploy-keys/gitconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/settings"
	"github.com/CircleCI-Public/ssh-deploy-keys/sshconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/teardown"
	"github.com/spf13/cobra"
)

type cleanupOptions struct {
	cfg *settings.Config
	env *environment
	log *logger.Logger
}

func newCleanupCommand(config *settings.Config, env *environment, configPath *string) *cobra.Command {
	opts := cleanupOptions{
		cfg: config,
		env: env,
	}

	return &cobra.Command{
		Use:   "cleanup",
		Short: "Stop the SSH agent and remove every deploy key mapping",
		Long: `Stop the SSH agent named by SSH_AGENT_PID and remove all deploy key
files, SSH host aliases and git URL rewrites created by "setup".

Nothing is remembered between the two commands: cleanup finds what to
remove by name. It never fails; problems are logged and the remaining steps
still run.`,
		Args: cobra.NoArgs,
		// Overrides the root hook: a broken configuration must not keep
		// cleanup from running.
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			err := loadConfig(cmd, config, *configPath)
			opts.log = env.newLogger(config.Debug)
			if err != nil {
				opts.log.Warnf("Could not load configuration, proceeding anyway: %s", err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			opts.run()
			return nil
		},
	}
}

func (o *cleanupOptions) run() {
	reaper := &teardown.Reaper{
		Store: gitconfig.WithRetry(gitconfig.NewGlobal(o.env.runner, o.cfg.GitCommand), o.env.policy(o.log)),
		Dir:   sshconfig.NewDir(o.env.fs, o.cfg.Home),
		Agent: agent.New(o.env.runner, o.cfg.SSHAgentCommand, o.cfg.SSHAddCommand, o.log),
		Log:   o.log,
	}
	if failed := reaper.Run(); failed > 0 {
		o.log.Warnf("%d cleanup step(s) failed", failed)
	}
}

package cmd

import (
	"context"
	"fmt"

	"github.com/CircleCI-Public/ssh-deploy-keys/actions"
	"github.com/CircleCI-Public/ssh-deploy-keys/agent"
	"github.com/CircleCI-Public/ssh-deploy-keys/deploykey"
	"github.com/CircleCI-Public/ssh-deploy-keys/errs"
	"github.com/CircleCI-Public/ssh-deploy-keys/gitconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/hostkeys"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/settings"
	"github.com/CircleCI-Public/ssh-deploy-keys/sshconfig"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type setupOptions struct {
	cfg *settings.Config
	env *environment
	log *logger.Logger
}

func newSetupCommand(config *settings.Config, env *environment) *cobra.Command {
	opts := setupOptions{
		cfg: config,
		env: env,
	}

	return &cobra.Command{
		Use:   "setup",
		Short: "Start an SSH agent with the given keys and configure deploy keys",
		Long: `Start an SSH agent, add the private key(s) to it and export
SSH_AUTH_SOCK and SSH_AGENT_PID for the following steps.

Every key whose comment contains a GitHub repository URL, for example
"git@github.com:owner/repo.git", gets its own SSH host alias. git is told to
use that alias for the repository, so each repository is cloned with its own
deploy key.`,
		Args: cobra.NoArgs,
		PreRun: func(_ *cobra.Command, _ []string) {
			opts.log = env.newLogger(config.Debug)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := opts.run(cmd.Context())
			var notFound *errs.ToolNotFoundError
			if errors.As(err, &notFound) {
				opts.log.Infof("The executable '%s' could not be found.", notFound.Tool)
				opts.log.Infof("PATH is set to: %s", notFound.Path)
			}
			return err
		},
	}
}

func (o *setupOptions) run(ctx context.Context) error {
	// A missing key aborts before anything is changed.
	privateKey, err := o.cfg.ResolvePrivateKey(o.env.stdin)
	if err != nil {
		return err
	}

	dir := sshconfig.NewDir(o.env.fs, o.cfg.Home)
	if err := dir.Ensure(); err != nil {
		return errors.Wrapf(err, "creating %s", dir.Path)
	}

	if o.cfg.FetchGitHubHostKeys {
		o.addGitHubHostKeys(ctx, dir)
	}

	bridge := agent.New(o.env.runner, o.cfg.SSHAgentCommand, o.cfg.SSHAddCommand, o.log)

	o.log.Infoln("Starting ssh-agent")
	vars, err := bridge.Start(o.cfg.AuthSock)
	if err != nil {
		return err
	}
	exporter := actions.NewExporter(o.env.fs)
	exporter.Stdout = func(s string) { fmt.Fprintln(o.env.stdout, s) }
	for _, v := range vars {
		o.log.Infof("%s=%s", v.Name, v.Value)
		if err := exporter.Export(v.Name, v.Value); err != nil {
			return errors.Wrapf(err, "exporting %s", v.Name)
		}
	}

	o.log.Infoln("Adding private key(s) to agent")
	if err := bridge.AddKeys(privateKey); err != nil {
		return err
	}

	listing, err := bridge.Fingerprints()
	if err != nil {
		return err
	}
	o.log.Infoln("Key(s) added:")
	o.log.Info(listing)

	o.log.Infoln("Configuring deployment key(s)")
	keys, err := bridge.ListPublic()
	if err != nil {
		return err
	}
	for _, k := range keys {
		o.log.Debug("Agent holds %s key %s", k.Type, k.Fingerprint())
	}

	router := &deploykey.Router{
		Store:        gitconfig.WithRetry(gitconfig.NewGlobal(o.env.runner, o.cfg.GitCommand), o.env.policy(o.log)),
		Dir:          dir,
		Log:          o.log,
		LogUnmatched: o.cfg.LogPublicKey,
	}
	_, err = router.Route(keys)
	return err
}

// addGitHubHostKeys trusts GitHub's published host keys. Failures only warn.
func (o *setupOptions) addGitHubHostKeys(ctx context.Context, dir *sshconfig.Dir) {
	o.log.Infof("Adding GitHub.com keys to %s", dir.KnownHostsPath())

	client, err := hostkeys.New(o.cfg.GitHubAPI)
	if err != nil {
		o.log.Warnf("Could not fetch GitHub host keys: %s", err)
		return
	}
	keys, err := client.Fetch(ctx)
	if err != nil {
		o.log.Warnf("Could not fetch GitHub host keys: %s", err)
		return
	}

	lines, invalid := hostkeys.KnownHostsLines(keys)
	for _, key := range invalid {
		o.log.Warnf("Ignoring malformed GitHub host key %q", key)
	}
	if err := dir.AppendKnownHosts(lines); err != nil {
		o.log.Warnf("Could not write %s: %s", dir.KnownHostsPath(), err)
		return
	}
	o.log.Infof("Added %d GitHub host key(s)", len(lines))
}

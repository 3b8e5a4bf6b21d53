package cmd

import (
	"io"

	"github.com/CircleCI-Public/ssh-deploy-keys/gitconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/identity"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/settings"
	"github.com/CircleCI-Public/ssh-deploy-keys/sshconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/teardown"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type listOptions struct {
	cfg *settings.Config
	env *environment
	log *logger.Logger
}

func newListCommand(config *settings.Config, env *environment) *cobra.Command {
	opts := listOptions{
		cfg: config,
		env: env,
	}

	return &cobra.Command{
		Use:   "list",
		Short: "List the deploy key mappings cleanup would remove",
		Args:  cobra.NoArgs,
		PreRun: func(_ *cobra.Command, _ []string) {
			opts.log = env.newLogger(config.Debug)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.OutOrStdout())
		},
	}
}

func (o *listOptions) run(out io.Writer) error {
	store := gitconfig.WithRetry(gitconfig.NewGlobal(o.env.runner, o.cfg.GitCommand), o.env.policy(o.log))
	owned, err := teardown.Scan(store)
	if err != nil {
		return err
	}

	dir := sshconfig.NewDir(o.env.fs, o.cfg.Home)
	exists, err := afero.DirExists(dir.Fs, dir.Path)
	if err != nil {
		return err
	}
	var files []string
	if exists {
		if files, err = dir.KeyFiles(identity.Prefix + "-"); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Identity", "Kind", "Location"})
	for _, section := range owned {
		table.Append([]string{string(section.Name), "git config", section.Section})
	}
	for _, name := range files {
		table.Append([]string{name, "key file", dir.KeyPath(name)})
	}
	table.Render()
	return nil
}

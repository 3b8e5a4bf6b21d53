// Package teardown reverses what the deploy key setup did. It keeps no record
// of that run: everything carrying identity.Prefix in the global git config
// and the SSH directory is rediscovered and removed.
package teardown

import (
	"regexp"

	"github.com/CircleCI-Public/ssh-deploy-keys/gitconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/identity"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/sshconfig"
	"github.com/pkg/errors"
)

// ownedPrefix starts every owned key file name and Host label.
const ownedPrefix = identity.Prefix + "-"

// rewritePattern matches the insteadOf entries of owned sections as printed
// by `git config --get-regexp`.
var rewritePattern = `^url\..*@` + regexp.QuoteMeta(ownedPrefix) + `.*\.insteadof$`

// Owned is one git config section created for an identity.
type Owned struct {
	Name    identity.Name
	Section string
}

// Scan lists the owned sections in store, each once, in the order first seen.
func Scan(store gitconfig.Store) ([]Owned, error) {
	entries, err := store.GetRegexp(rewritePattern)
	if err != nil {
		return nil, errors.Wrap(err, "listing deploy key sections")
	}

	seen := map[string]bool{}
	var owned []Owned
	for _, e := range entries {
		section := e.Section()
		if section == "" || seen[section] {
			continue
		}
		seen[section] = true
		name, _ := identity.NameFromSection(section)
		owned = append(owned, Owned{Name: name, Section: section})
	}
	return owned, nil
}

// Remove drops one owned section with all its insteadOf values.
func Remove(store gitconfig.Store, o Owned) error {
	return errors.Wrapf(store.RemoveSection(o.Section), "removing git config section %s", o.Section)
}

// Stopper stops the SSH agent; failures are handled by the implementation.
type Stopper interface {
	Stop()
}

// Reaper runs every cleanup sweep. Store must already be retry guarded.
type Reaper struct {
	Store gitconfig.Store
	Dir   *sshconfig.Dir
	Agent Stopper
	Log   *logger.Logger
}

// Run stops the agent and runs the config, key file and host block sweeps.
// A failing sweep is logged and the next one still runs. The returned count
// is the number of sweeps that failed.
func (r *Reaper) Run() int {
	failed := 0
	if r.Agent != nil {
		r.Agent.Stop()
	}
	for _, sweep := range []struct {
		name string
		run  func() error
	}{
		{"restoring git config", r.SweepConfig},
		{"removing custom SSH keys", r.SweepKeys},
		{"removing custom host entries", r.SweepHosts},
	} {
		if err := sweep.run(); err != nil {
			failed++
			r.Log.Error("Error "+sweep.name+", proceeding anyway: ", err)
		}
	}
	return failed
}

// SweepConfig removes every owned git config section. It keeps going after a
// failed removal and returns the first error.
func (r *Reaper) SweepConfig() error {
	r.Log.Infoln("Restoring git config")
	owned, err := Scan(r.Store)
	if err != nil {
		return err
	}

	var first error
	for _, o := range owned {
		r.Log.Infof("Removing git config section %s", o.Section)
		if err := Remove(r.Store, o); err != nil {
			r.Log.Error("", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// SweepKeys deletes every owned key file.
func (r *Reaper) SweepKeys() error {
	r.Log.Infoln("Removing custom SSH keys")
	names, err := r.Dir.KeyFiles(ownedPrefix)
	if err != nil {
		return err
	}

	var first error
	for _, name := range names {
		if err := r.Dir.RemoveKey(name); err != nil {
			r.Log.Error("", err)
			if first == nil {
				first = err
			}
			continue
		}
		r.Log.Infof("Deleted file: %s", r.Dir.KeyPath(name))
	}
	return first
}

// SweepHosts removes owned Host blocks from the SSH client config.
func (r *Reaper) SweepHosts() error {
	r.Log.Infoln("Removing custom host entries")
	return r.Dir.RemoveHosts(ownedPrefix)
}

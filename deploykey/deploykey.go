// Package deploykey turns agent-held public keys whose comment names a GitHub
// repository into identity mappings: a key file, an SSH Host alias and three
// git insteadOf rewrites that send that repository's URLs through the alias.
package deploykey

import (
	"github.com/CircleCI-Public/ssh-deploy-keys/agent"
	"github.com/CircleCI-Public/ssh-deploy-keys/gitconfig"
	"github.com/CircleCI-Public/ssh-deploy-keys/identity"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/sshconfig"
	"github.com/pkg/errors"
)

// Router creates mappings. Store must already be retry guarded.
type Router struct {
	Store        gitconfig.Store
	Dir          *sshconfig.Dir
	Log          *logger.Logger
	LogUnmatched bool
}

// Route creates a mapping for every key with a GitHub repository in its
// comment and returns them in input order. It stops at the first failure.
func (r *Router) Route(keys []agent.PublicKey) ([]identity.Mapping, error) {
	var mappings []identity.Mapping
	for _, key := range keys {
		repo, ok := identity.ParseRepository(key.Comment)
		if !ok {
			if r.LogUnmatched {
				r.Log.Infof("Comment for (public) key '%s' does not match GitHub URL pattern. Not treating it as a GitHub deploy key.", key.Line)
			}
			continue
		}

		m := identity.NewMapping(key.Line, repo)
		if err := r.create(m); err != nil {
			return mappings, errors.Wrapf(err, "configuring deploy key for %s", repo)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (r *Router) create(m identity.Mapping) error {
	keyPath, err := r.Dir.WriteKey(string(m.Name), m.KeyLine)
	if err != nil {
		return err
	}

	// The first write replaces whatever a previous run left under the
	// key; the other two are further values of the same key.
	for i, source := range m.RewriteSources() {
		if i == 0 {
			err = r.Store.ReplaceAll(m.RewriteKey(), source)
		} else {
			err = r.Store.Add(m.RewriteKey(), source)
		}
		if err != nil {
			return err
		}
	}

	if err := r.Dir.AppendHost(m.HostBlock(keyPath)); err != nil {
		return err
	}

	r.Log.Infof("Added deploy-key mapping: Use identity '%s' for GitHub repository %s", keyPath, m.Repository)
	return nil
}

// Package gitconfig manipulates the global git configuration. That file is
// shared by every process in the job and git takes an advisory lock while
// writing it, so every mutation goes through a retry policy.
package gitconfig

import (
	"strings"

	"github.com/CircleCI-Public/ssh-deploy-keys/retry"
	"github.com/CircleCI-Public/ssh-deploy-keys/shell"
	"github.com/pkg/errors"
)

// Entry is one line of `git config --get-regexp` output.
type Entry struct {
	Key   string
	Value string
}

// Section returns the key without its final variable name, e.g.
// url.git@host:org/repo for url.git@host:org/repo.insteadof.
func (e Entry) Section() string {
	i := strings.LastIndex(e.Key, ".")
	if i < 0 {
		return ""
	}
	return e.Key[:i]
}

// Store is the set of operations this tool performs on git configuration.
type Store interface {
	// ReplaceAll sets key to value, dropping any other values of key.
	ReplaceAll(key, value string) error
	// Add appends another value for key.
	Add(key, value string) error
	// GetRegexp lists every entry whose key matches pattern. No match is not an error.
	GetRegexp(pattern string) ([]Entry, error)
	// RemoveSection drops a whole section with all its values.
	RemoveSection(section string) error
}

// Global is the Store backed by `git config --global`.
type Global struct {
	Runner  shell.Runner
	Command string
}

func NewGlobal(runner shell.Runner, command string) *Global {
	if command == "" {
		command = "git"
	}
	return &Global{Runner: runner, Command: command}
}

func (g *Global) run(args ...string) (string, error) {
	return g.Runner.Run(nil, g.Command, append([]string{"config", "--global"}, args...)...)
}

func (g *Global) ReplaceAll(key, value string) error {
	_, err := g.run("--replace-all", key, value)
	return errors.Wrapf(err, "git config --replace-all %s", key)
}

func (g *Global) Add(key, value string) error {
	_, err := g.run("--add", key, value)
	return errors.Wrapf(err, "git config --add %s", key)
}

func (g *Global) GetRegexp(pattern string) ([]Entry, error) {
	out, err := g.run("--get-regexp", pattern)
	if err != nil {
		// git exits 1 when nothing matches.
		if shell.ExitCode(err) == 1 {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "git config --get-regexp %s", pattern)
	}
	return parseEntries(out), nil
}

func (g *Global) RemoveSection(section string) error {
	_, err := g.run("--remove-section", section)
	return errors.Wrapf(err, "git config --remove-section %s", section)
}

func parseEntries(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries
}

// Guarded runs every operation of the wrapped Store through a retry policy.
type Guarded struct {
	store  Store
	policy retry.Policy
}

func WithRetry(store Store, policy retry.Policy) *Guarded {
	return &Guarded{store: store, policy: policy}
}

func (g *Guarded) ReplaceAll(key, value string) error {
	return g.policy.Do(func() error { return g.store.ReplaceAll(key, value) })
}

func (g *Guarded) Add(key, value string) error {
	return g.policy.Do(func() error { return g.store.Add(key, value) })
}

func (g *Guarded) GetRegexp(pattern string) ([]Entry, error) {
	var entries []Entry
	err := g.policy.Do(func() error {
		var err error
		entries, err = g.store.GetRegexp(pattern)
		return err
	})
	return entries, err
}

func (g *Guarded) RemoveSection(section string) error {
	return g.policy.Do(func() error { return g.store.RemoveSection(section) })
}

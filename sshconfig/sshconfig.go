// Package sshconfig owns the files under the SSH directory: per-identity key
// files, Host blocks in the client config and known_hosts entries.
package sshconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	configFile     = "config"
	knownHostsFile = "known_hosts"
)

// Dir is an SSH directory, usually ~/.ssh.
type Dir struct {
	Fs   afero.Fs
	Path string
}

func NewDir(fs afero.Fs, home string) *Dir {
	return &Dir{Fs: fs, Path: filepath.Join(home, ".ssh")}
}

// Ensure creates the directory if it does not exist yet.
func (d *Dir) Ensure() error {
	return errors.Wrapf(d.Fs.MkdirAll(d.Path, 0700), "creating %s", d.Path)
}

// KeyPath is where the key file for name lives.
func (d *Dir) KeyPath(name string) string {
	return filepath.Join(d.Path, name)
}

func (d *Dir) ConfigPath() string {
	return filepath.Join(d.Path, configFile)
}

func (d *Dir) KnownHostsPath() string {
	return filepath.Join(d.Path, knownHostsFile)
}

// WriteKey stores a public key line readable only by the owner.
func (d *Dir) WriteKey(name, keyLine string) (string, error) {
	path := d.KeyPath(name)
	if err := afero.WriteFile(d.Fs, path, []byte(keyLine+"\n"), 0600); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	// WriteFile leaves the mode of an existing file alone.
	if err := d.Fs.Chmod(path, 0600); err != nil {
		return "", errors.Wrapf(err, "chmod %s", path)
	}
	return path, nil
}

// KeyFiles lists file names in the directory that start with prefix.
func (d *Dir) KeyFiles(prefix string) ([]string, error) {
	infos, err := afero.ReadDir(d.Fs, d.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", d.Path)
	}

	var names []string
	for _, info := range infos {
		if !info.IsDir() && strings.HasPrefix(info.Name(), prefix) {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (d *Dir) RemoveKey(name string) error {
	path := d.KeyPath(name)
	return errors.Wrapf(d.Fs.Remove(path), "removing %s", path)
}

// AppendHost appends a rendered Host block to the client config.
func (d *Dir) AppendHost(block string) error {
	return d.appendFile(d.ConfigPath(), block)
}

// AppendKnownHosts appends lines to known_hosts.
func (d *Dir) AppendKnownHosts(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return d.appendFile(d.KnownHostsPath(), strings.Join(lines, "\n")+"\n")
}

func (d *Dir) appendFile(path, contents string) error {
	f, err := d.Fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	if _, err := f.WriteString(contents); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "appending to %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}

// RemoveHosts rewrites the client config without the Host blocks whose label
// starts with prefix.
func (d *Dir) RemoveHosts(prefix string) error {
	path := d.ConfigPath()
	info, err := d.Fs.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	contents, err := afero.ReadFile(d.Fs, path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	lines := FilterHostBlocks(strings.Split(string(contents), "\n"), prefix)
	err = afero.WriteFile(d.Fs, path, []byte(strings.Join(lines, "\n")), info.Mode().Perm())
	return errors.Wrapf(err, "writing %s", path)
}

// FilterHostBlocks drops every Host block whose label starts with prefix.
//
// A line starting with "Host <prefix>" switches to skipping, any other line
// starting with "Host " switches back to keeping. Lines are kept or dropped
// according to the state after looking at them, so the Host line itself
// follows the block it opens.
func FilterHostBlocks(lines []string, prefix string) []string {
	kept := make([]string, 0, len(lines))
	skipping := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Host "+prefix):
			skipping = true
		case strings.HasPrefix(line, "Host "):
			skipping = false
		}
		if !skipping {
			kept = append(kept, line)
		}
	}
	return kept
}

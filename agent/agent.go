// Package agent drives the ssh-agent and ssh-add binaries. Each call is one
// synchronous process invocation; nothing here keeps state between calls
// beyond the environment variables the agent reports for itself.
package agent

import (
	"regexp"
	"strings"

	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
	"github.com/CircleCI-Public/ssh-deploy-keys/shell"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// EnvVar is a variable the agent asks its callers to export.
type EnvVar struct {
	Name  string
	Value string
}

// PublicKey is one line of `ssh-add -L` output.
type PublicKey struct {
	Type    string
	Blob    string
	Comment string
	// Line is the listing line as printed; identities are derived from it.
	Line string
}

// Fingerprint returns the SHA256 fingerprint of the key, or "" when the
// blob does not parse.
func (k PublicKey) Fingerprint() string {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.Type + " " + k.Blob))
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

// Bridge runs the agent tools.
type Bridge struct {
	Runner   shell.Runner
	AgentCmd string
	AddCmd   string
	Log      *logger.Logger
}

func New(runner shell.Runner, agentCmd, addCmd string, log *logger.Logger) *Bridge {
	return &Bridge{Runner: runner, AgentCmd: agentCmd, AddCmd: addCmd, Log: log}
}

// Start launches the agent, optionally bound to authSock, and returns the
// variables it reports. Callers must export them so later ssh-add calls and
// later job steps reach the same agent.
func (b *Bridge) Start(authSock string) ([]EnvVar, error) {
	var args []string
	if authSock != "" {
		args = []string{"-a", authSock}
	}

	out, err := b.Runner.Run(nil, b.AgentCmd, args...)
	if err != nil {
		return nil, errors.Wrap(err, "starting ssh-agent")
	}
	return ParseAgentOutput(out), nil
}

var agentVarPattern = regexp.MustCompile(`^(SSH_AUTH_SOCK|SSH_AGENT_PID)=(.*); export (SSH_AUTH_SOCK|SSH_AGENT_PID)`)

// ParseAgentOutput picks SSH_AUTH_SOCK and SSH_AGENT_PID out of the
// Bourne shell commands ssh-agent prints.
func ParseAgentOutput(out string) []EnvVar {
	var vars []EnvVar
	for _, line := range strings.Split(out, "\n") {
		matches := agentVarPattern.FindStringSubmatch(line)
		if matches == nil || matches[1] != matches[3] {
			continue
		}
		vars = append(vars, EnvVar{Name: matches[1], Value: matches[2]})
	}
	return vars
}

// AddKeys feeds every PEM block in bundle to ssh-add separately. The first
// failing block stops the run.
func (b *Bridge) AddKeys(bundle string) error {
	for i, key := range SplitKeys(bundle) {
		if _, err := b.Runner.Run(strings.NewReader(key+"\n"), b.AddCmd, "-"); err != nil {
			return errors.Wrapf(err, "adding private key #%d", i+1)
		}
	}
	return nil
}

const pemBoundary = "-----BEGIN"

// SplitKeys splits a bundle of concatenated private keys before each PEM
// header and trims every chunk. Chunks that are empty after trimming are dropped.
func SplitKeys(bundle string) []string {
	var keys []string
	for bundle != "" {
		chunk := bundle
		bundle = ""
		// Search from 1 so a chunk starting with a header keeps it.
		if next := strings.Index(chunk[1:], pemBoundary); next >= 0 {
			chunk, bundle = chunk[:next+1], chunk[next+1:]
		}
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			keys = append(keys, chunk)
		}
	}
	return keys
}

// Fingerprints returns the agent's `ssh-add -l` listing.
func (b *Bridge) Fingerprints() (string, error) {
	out, err := b.Runner.Run(nil, b.AddCmd, "-l")
	return out, errors.Wrap(err, "listing agent keys")
}

// ListPublic returns the public keys held by the agent.
func (b *Bridge) ListPublic() ([]PublicKey, error) {
	out, err := b.Runner.Run(nil, b.AddCmd, "-L")
	if err != nil {
		return nil, errors.Wrap(err, "listing agent public keys")
	}
	return ParsePublicKeys(out), nil
}

var publicKeyPattern = regexp.MustCompile(`^(\S+)\s+(\S+)(?:\s+(.*))?$`)

// ParsePublicKeys parses `ssh-add -L` output: key type, blob and the rest of
// the line as comment. Lines that do not have at least a type and a blob
// are skipped.
func ParsePublicKeys(out string) []PublicKey {
	var keys []PublicKey
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimRight(line, "\r")
		matches := publicKeyPattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		keys = append(keys, PublicKey{
			Type:    matches[1],
			Blob:    matches[2],
			Comment: matches[3],
			Line:    line,
		})
	}
	return keys
}

// Stop kills the agent named by SSH_AGENT_PID. Failures are logged and
// swallowed.
func (b *Bridge) Stop() {
	b.Log.Infoln("Stopping SSH agent")
	if _, err := b.Runner.Run(nil, b.AgentCmd, "-k"); err != nil {
		b.Log.Error("Error stopping the SSH agent, proceeding anyway: ", err)
	}
}

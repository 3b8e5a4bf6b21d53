package sshconfig

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterHostBlocks(t *testing.T) {
	lines := []string{
		"Host other.example",
		"    User me",
		"",
		"Host key-abc.github.com",
		"    HostName x",
		"    IdentityFile /home/runner/.ssh/key-abc",
		"    IdentitiesOnly yes",
		"Host other2",
		"    Port 2222",
	}

	assert.Equal(t, []string{
		"Host other.example",
		"    User me",
		"",
		"Host other2",
		"    Port 2222",
	}, FilterHostBlocks(lines, "key"))
}

func TestFilterHostBlocksTrailingBlocks(t *testing.T) {
	lines := []string{
		"Host keep",
		"",
		"Host key-1.github.com",
		"    HostName github.com",
		"",
		"Host key-2.github.com",
		"    HostName github.com",
		"",
	}

	assert.Equal(t, []string{"Host keep", ""}, FilterHostBlocks(lines, "key"))
}

func TestFilterHostBlocksNothingOwned(t *testing.T) {
	lines := []string{"# comment", "Host a", "  HostName b", "Hostname c"}
	assert.Equal(t, lines, FilterHostBlocks(lines, "key"))
}

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d := NewDir(afero.NewMemMapFs(), "/home/runner")
	require.NoError(t, d.Ensure())
	return d
}

func TestWriteKey(t *testing.T) {
	d := newTestDir(t)

	path, err := d.WriteKey("key-abc", "ssh-ed25519 AAAA git@github.com:o/r")
	require.NoError(t, err)
	assert.Equal(t, "/home/runner/.ssh/key-abc", path)

	contents, err := afero.ReadFile(d.Fs, path)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA git@github.com:o/r\n", string(contents))

	info, err := d.Fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().String())
}

func TestKeyFilesAndRemoveKey(t *testing.T) {
	d := newTestDir(t)
	for _, name := range []string{"key-1", "key-2", "id_ed25519", "known_hosts"} {
		require.NoError(t, afero.WriteFile(d.Fs, d.KeyPath(name), []byte("x\n"), 0600))
	}
	require.NoError(t, d.Fs.Mkdir(d.KeyPath("key-dir"), 0700))

	names, err := d.KeyFiles("key-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"key-1", "key-2"}, names)

	require.NoError(t, d.RemoveKey("key-1"))
	names, err = d.KeyFiles("key-")
	require.NoError(t, err)
	assert.Equal(t, []string{"key-2"}, names)
}

func TestKeyFilesMissingDirectory(t *testing.T) {
	d := NewDir(afero.NewMemMapFs(), "/nowhere")
	_, err := d.KeyFiles("key-")
	assert.Error(t, err)
}

func TestAppendAndRemoveHostsRoundTrip(t *testing.T) {
	d := newTestDir(t)
	const original = "Host bastion\n    User ops\n"
	require.NoError(t, afero.WriteFile(d.Fs, d.ConfigPath(), []byte(original), 0644))

	require.NoError(t, d.AppendHost("\nHost key-1.github.com\n    HostName github.com\n    IdentityFile /home/runner/.ssh/key-1\n    IdentitiesOnly yes\n"))
	require.NoError(t, d.AppendHost("\nHost key-2.github.com\n    HostName github.com\n    IdentityFile /home/runner/.ssh/key-2\n    IdentitiesOnly yes\n"))

	contents, err := afero.ReadFile(d.Fs, d.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Host key-2.github.com")

	require.NoError(t, d.RemoveHosts("key"))

	contents, err = afero.ReadFile(d.Fs, d.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, original, string(contents))
}

func TestRemoveHostsMissingConfig(t *testing.T) {
	d := newTestDir(t)
	assert.Error(t, d.RemoveHosts("key"))
}

func TestAppendKnownHosts(t *testing.T) {
	d := newTestDir(t)

	require.NoError(t, d.AppendKnownHosts(nil))
	exists, err := afero.Exists(d.Fs, d.KnownHostsPath())
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.AppendKnownHosts([]string{"github.com ssh-ed25519 AAAA1", "github.com ssh-rsa AAAA2"}))
	require.NoError(t, d.AppendKnownHosts([]string{"github.com ecdsa-sha2-nistp256 AAAA3"}))

	contents, err := afero.ReadFile(d.Fs, d.KnownHostsPath())
	require.NoError(t, err)
	assert.Equal(t, "github.com ssh-ed25519 AAAA1\ngithub.com ssh-rsa AAAA2\ngithub.com ecdsa-sha2-nistp256 AAAA3\n", string(contents))
}

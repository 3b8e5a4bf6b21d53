// Package identity derives the names and rendered configuration of a deploy
// key identity. Everything here is pure: the same key line always yields the
// same name, host alias, git config section and SSH host block, because the
// cleanup step has nothing else to go on.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Prefix marks every key file, host alias and git config section this tool
// owns. Cleanup removes anything carrying it.
const Prefix = "key"

const gitHubHost = "github.com"

// Name is the identity derived from one public key line.
type Name string

// NameFor returns Prefix-<hex sha256 of keyLine>.
func NameFor(keyLine string) Name {
	sum := sha256.Sum256([]byte(keyLine))
	return Name(Prefix + "-" + hex.EncodeToString(sum[:]))
}

// HostAlias is the SSH Host label pinned to this identity.
func (n Name) HostAlias() string {
	return string(n) + "." + gitHubHost
}

// Owned reports whether a file name, host label or section carries the prefix.
func Owned(s string) bool {
	return strings.HasPrefix(s, Prefix+"-")
}

// Repository is the GitHub owner/repo a deploy key was issued for.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

var repositoryPattern = regexp.MustCompile(`(?i)\bgithub\.com[:/]([_.a-z0-9-]+/[_.a-z0-9-]+)`)

// ParseRepository extracts the first GitHub owner/repo from a key comment.
// A trailing .git is dropped.
func ParseRepository(comment string) (Repository, bool) {
	matches := repositoryPattern.FindStringSubmatch(comment)
	if matches == nil {
		return Repository{}, false
	}

	slug := strings.TrimSuffix(matches[1], ".git")
	owner, name, _ := strings.Cut(slug, "/")
	return Repository{Owner: owner, Name: name}, true
}

// Mapping is everything created for one deploy key.
type Mapping struct {
	Name       Name
	Repository Repository
	KeyLine    string
}

// NewMapping builds the mapping for a listed public key line and its repository.
func NewMapping(keyLine string, repo Repository) Mapping {
	return Mapping{
		Name:       NameFor(keyLine),
		Repository: repo,
		KeyLine:    keyLine,
	}
}

// Section is the git config section holding the insteadOf rewrites.
func (m Mapping) Section() string {
	return fmt.Sprintf("url.git@%s:%s", m.Name.HostAlias(), m.Repository)
}

// RewriteKey is the full git config key for the insteadOf values.
func (m Mapping) RewriteKey() string {
	return m.Section() + ".insteadOf"
}

// RewriteSources lists the URL forms redirected to the host alias: HTTPS,
// scp-like SSH and explicit ssh://, in the order they are written.
func (m Mapping) RewriteSources() []string {
	return []string{
		fmt.Sprintf("https://%s/%s", gitHubHost, m.Repository),
		fmt.Sprintf("git@%s:%s", gitHubHost, m.Repository),
		fmt.Sprintf("ssh://git@%s/%s", gitHubHost, m.Repository),
	}
}

// HostBlock renders the SSH client config block, including its leading blank line.
func (m Mapping) HostBlock(keyPath string) string {
	return fmt.Sprintf("\nHost %s\n    HostName %s\n    IdentityFile %s\n    IdentitiesOnly yes\n",
		m.Name.HostAlias(), gitHubHost, keyPath)
}

var sectionNamePattern = regexp.MustCompile(`@(` + regexp.QuoteMeta(Prefix) + `-[0-9a-f]+)\.` + regexp.QuoteMeta(gitHubHost))

// NameFromSection recovers the identity embedded in a git config section name.
func NameFromSection(section string) (Name, bool) {
	matches := sectionNamePattern.FindStringSubmatch(section)
	if matches == nil {
		return "", false
	}
	return Name(matches[1]), true
}

// Package hostkeys fetches GitHub's published SSH host keys from the meta
// endpoint so they can be trusted before the first connection.
package hostkeys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CircleCI-Public/ssh-deploy-keys/version"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const DefaultAPI = "https://api.github.com"

// Host is the name the keys are recorded under in known_hosts.
const Host = "github.com"

type Client struct {
	baseURL *url.URL
	client  *http.Client
}

func New(api string) (*Client, error) {
	if api == "" {
		api = DefaultAPI
	}
	if !strings.HasSuffix(api, "/") {
		api += "/"
	}
	u, err := url.Parse(api)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing GitHub API address %q", api)
	}
	return &Client{
		baseURL: u,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type meta struct {
	SSHKeys []string `json:"ssh_keys"`
}

type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("response %d (%s)", e.Code, http.StatusText(e.Code))
}

// Fetch returns the SSH host keys listed by the meta endpoint.
func (c *Client) Fetch(ctx context.Context) ([]string, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: "meta"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &HTTPError{Code: resp.StatusCode}
	}

	var m meta
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decoding GitHub meta response")
	}
	return m.SSHKeys, nil
}

// KnownHostsLines renders keys as known_hosts lines for github.com. Keys that
// do not parse are returned separately and left out.
func KnownHostsLines(keys []string) (lines []string, invalid []string) {
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			invalid = append(invalid, key)
			continue
		}
		lines = append(lines, Host+" "+key)
	}
	return lines, invalid
}

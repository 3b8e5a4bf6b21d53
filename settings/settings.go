package settings

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/CircleCI-Public/ssh-deploy-keys/actions"
	"github.com/CircleCI-Public/ssh-deploy-keys/errs"
	"github.com/CircleCI-Public/ssh-deploy-keys/hostkeys"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v3"
)

// FS is the filesystem every file access of the tool goes through.
// Overwrite it in tests.
var FS = afero.Afero{Fs: afero.NewOsFs()}

// envPrefix namespaces environment overrides, e.g. SSH_DEPLOY_KEYS_HOME.
const envPrefix = "ssh_deploy_keys"

// Config is used to represent the current state of a run.
type Config struct {
	PrivateKey          string `yaml:"ssh_private_key"`
	PrivateKeyFile      string `yaml:"ssh_private_key_file"`
	AuthSock            string `yaml:"ssh_auth_sock"`
	LogPublicKey        bool   `yaml:"log_public_key"`
	FetchGitHubHostKeys bool   `yaml:"fetch_github_host_keys"`
	Home                string `yaml:"home"`
	GitCommand          string `yaml:"git_command"`
	SSHAgentCommand     string `yaml:"ssh_agent_command"`
	SSHAddCommand       string `yaml:"ssh_add_command"`
	GitHubAPI           string `yaml:"github_api"`
	Debug               bool   `yaml:"debug"`
	FileUsed            string `yaml:"-"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	home, _ := os.UserHomeDir()
	cfg := &Config{
		LogPublicKey:    true,
		Home:            home,
		GitCommand:      "git",
		SSHAgentCommand: "ssh-agent",
		SSHAddCommand:   "ssh-add",
		GitHubAPI:       hostkeys.DefaultAPI,
	}
	if runtime.GOOS == "windows" {
		// Use the OpenSSH shipped with Git for Windows; the Windows
		// OpenSSH agent runs as a service and ignores -a.
		cfg.GitCommand = "c://progra~1//git//bin//git.exe"
		cfg.SSHAgentCommand = "c://progra~1//git//usr//bin//ssh-agent.exe"
		cfg.SSHAddCommand = "c://progra~1//git//usr//bin//ssh-add.exe"
	}
	return cfg
}

// Load reads the optional config file and then the environment.
func (cfg *Config) Load(path string) error {
	if path != "" {
		if err := cfg.LoadFromDisk(path); err != nil {
			return err
		}
	}
	return cfg.LoadFromEnv(envPrefix)
}

// LoadFromDisk deserializes a YAML file over the current values.
func (cfg *Config) LoadFromDisk(path string) error {
	content, err := FS.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	cfg.FileUsed = path
	return nil
}

// LoadFromEnv reads GitHub Actions step inputs and then environment
// variables of the given prefix.
func (cfg *Config) LoadFromEnv(prefix string) error {
	if v := actions.Input("ssh-private-key"); v != "" {
		cfg.PrivateKey = v
	}
	if v := actions.Input("ssh-auth-sock"); v != "" {
		cfg.AuthSock = v
	}
	if v, ok, err := actions.BoolInput("log-public-key"); err != nil {
		return errs.MissingInput(err)
	} else if ok {
		cfg.LogPublicKey = v
	}
	if v, ok, err := actions.BoolInput("fetch-github-host-keys"); err != nil {
		return errs.MissingInput(err)
	} else if ok {
		cfg.FetchGitHubHostKeys = v
	}

	if v := ReadFromEnv(prefix, "home"); v != "" {
		cfg.Home = v
	}
	if v := ReadFromEnv(prefix, "git_command"); v != "" {
		cfg.GitCommand = v
	}
	if v := ReadFromEnv(prefix, "ssh_agent_command"); v != "" {
		cfg.SSHAgentCommand = v
	}
	if v := ReadFromEnv(prefix, "ssh_add_command"); v != "" {
		cfg.SSHAddCommand = v
	}
	if v := ReadFromEnv(prefix, "github_api"); v != "" {
		cfg.GitHubAPI = v
	}
	return nil
}

// ReadFromEnv takes a prefix and field to search the environment for after capitalizing and joining them with an underscore.
func ReadFromEnv(prefix, field string) string {
	name := strings.Join([]string{prefix, field}, "_")
	return os.Getenv(strings.ToUpper(name))
}

// BindFlags registers flags writing straight into cfg. Load overwrites them,
// so callers apply explicitly set flags again after loading.
func (cfg *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.PrivateKeyFile, "private-key-file", cfg.PrivateKeyFile, "Read the private key(s) from this file, - for stdin")
	flags.StringVar(&cfg.AuthSock, "ssh-auth-sock", cfg.AuthSock, "Bind the SSH agent to this socket path")
	flags.BoolVar(&cfg.LogPublicKey, "log-public-key", cfg.LogPublicKey, "Log public keys that are not GitHub deploy keys")
	flags.BoolVar(&cfg.FetchGitHubHostKeys, "fetch-github-host-keys", cfg.FetchGitHubHostKeys, "Add GitHub's SSH host keys to known_hosts before starting the agent")
	flags.StringVar(&cfg.Home, "home", cfg.Home, "Home directory holding .ssh")
}

// ResolvePrivateKey returns the key material, reading PrivateKeyFile when no
// key was passed directly. A missing key is a configuration error.
func (cfg *Config) ResolvePrivateKey(stdin io.Reader) (string, error) {
	if cfg.PrivateKey == "" && cfg.PrivateKeyFile != "" {
		var (
			content []byte
			err     error
		)
		if cfg.PrivateKeyFile == "-" {
			content, err = io.ReadAll(stdin)
		} else {
			content, err = FS.ReadFile(cfg.PrivateKeyFile)
		}
		if err != nil {
			return "", errors.Wrap(err, "reading private key")
		}
		cfg.PrivateKey = string(content)
	}

	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return "", errs.MissingInputf("The ssh-private-key argument is empty. Maybe the secret has not been configured, or you are using a wrong secret name in your workflow file.")
	}
	return cfg.PrivateKey, nil
}

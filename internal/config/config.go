// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; connection strings registered through
// `scrapbook account add` go to the OS keychain. An account may still carry an inline
// connection string, typically a ${VAR} reference resolved from the environment or a
// .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/xdg"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Account kinds.
const (
	KindMongo    = "mongo"
	KindPostgres = "postgres"
)

// Defaults applied to missing values.
const (
	DefaultLanguage     = "mongo"
	DefaultExtension    = ".mongo"
	DefaultShellCommand = "mongosh"
	DefaultEndpoint     = "https://management.azure.com"
	DefaultAPIVersion   = "2021-04-15"
	DefaultLogLevel     = "warn"
)

const defaultConfigFileName = "config.yaml"

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Editor     string           `yaml:"editor,omitempty"`
	Scrapbook  ScrapbookConfig  `yaml:"scrapbook"`
	Shell      ShellConfig      `yaml:"shell"`
	Keyring    KeyringConfig    `yaml:"keyring"`
	Management ManagementConfig `yaml:"management"`
	Accounts   []Account        `yaml:"accounts"`
}

// ScrapbookConfig controls which files are treated as scrapbooks.
type ScrapbookConfig struct {
	Language  string `yaml:"language"`
	Extension string `yaml:"extension"`
}

// ShellConfig names the interactive shell launched by `scrapbook shell`.
type ShellConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// KeyringConfig selects keyring backends. Empty Backends lets the keyring library pick.
type KeyringConfig struct {
	Backends []string `yaml:"backends,omitempty"`
	FileDir  string   `yaml:"file_dir,omitempty"`
}

// ManagementConfig points at the Azure Resource Manager endpoint used for account deletion.
type ManagementConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
}

// Account is a registered database account.
type Account struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Connection string `yaml:"connection,omitempty"`
	ResourceID string `yaml:"resource_id,omitempty"`
}

// ResolvedConnection returns the inline connection string with environment variables expanded.
func (a Account) ResolvedConnection() string {
	return expandEnvVars(a.Connection)
}

// Path returns the path to the config file. SCRAPBOOK_CONFIG overrides the XDG location.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv("SCRAPBOOK_CONFIG")); p != "" {
		return p, nil
	}
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultConfigFileName), nil
}

// Default returns a configuration with every default applied and no accounts.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads configuration from the default path; a missing file returns defaults.
func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(p)
}

// LoadFrom reads configuration from path; a missing file returns defaults.
func LoadFrom(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Config
	if err := yaml.UnmarshalWithOptions(data, &c, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

// Save writes configuration to the default path.
func Save(c *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(p, c)
}

// SaveTo writes configuration with 0600 permissions.
func SaveTo(path string, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Validate checks account registrations for common errors.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, a := range c.Accounts {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("accounts[%d]: name is required", i))
		}
		if strings.Contains(name, "/") {
			return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("account %q: name must not contain '/'", name))
		}
		if _, dup := seen[name]; dup {
			return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("account %q is defined more than once", name))
		}
		seen[name] = struct{}{}

		switch a.Kind {
		case KindMongo, KindPostgres:
		default:
			return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("account %q: unknown kind %q (use %s or %s)", name, a.Kind, KindMongo, KindPostgres))
		}
		if a.ResourceID != "" && !strings.HasPrefix(strings.ToLower(a.ResourceID), "/subscriptions/") {
			return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("account %q: resource_id must start with /subscriptions/", name))
		}
	}
	return nil
}

// Account looks up a registered account by name.
func (c *Config) Account(name string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return Account{}, false
}

// AddAccount registers a new account; the name must be unused.
func (c *Config) AddAccount(a Account) error {
	if _, exists := c.Account(a.Name); exists {
		return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("account %q already exists", a.Name))
	}
	next := *c
	next.Accounts = append(append([]Account(nil), c.Accounts...), a)
	if err := next.Validate(); err != nil {
		return err
	}
	c.Accounts = next.Accounts
	return nil
}

// RemoveAccount unregisters an account. It reports whether the account existed.
func (c *Config) RemoveAccount(name string) bool {
	for i, a := range c.Accounts {
		if a.Name == name {
			c.Accounts = append(c.Accounts[:i:i], c.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

// IsScrapbookFile reports whether path carries the configured scrapbook extension.
func (c *Config) IsScrapbookFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), c.Scrapbook.Extension)
}

func applyDefaults(c *Config) {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Scrapbook.Language == "" {
		c.Scrapbook.Language = DefaultLanguage
	}
	if c.Scrapbook.Extension == "" {
		c.Scrapbook.Extension = DefaultExtension
	}
	if !strings.HasPrefix(c.Scrapbook.Extension, ".") {
		c.Scrapbook.Extension = "." + c.Scrapbook.Extension
	}
	if c.Shell.Command == "" {
		c.Shell.Command = DefaultShellCommand
	}
	if c.Management.Endpoint == "" {
		c.Management.Endpoint = DefaultEndpoint
	}
	if c.Management.APIVersion == "" {
		c.Management.APIVersion = DefaultAPIVersion
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

var (
	reBracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	reBareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = reBracedVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	return reBareVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

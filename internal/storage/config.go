// Manages server configuration stored in config.yaml.

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/maruel/mdwiki/internal/utils"
	"github.com/maruel/mdwiki/internal/wiki"
)

// ServerConfig stores all server-wide configuration.
// Loaded from config.yaml in the data dir, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret signs session tokens, hex encoded.
	// Auto-generated if empty on first load.
	JWTSecret string `yaml:"jwt_secret"`

	// SessionExpiryHours is how long a session stays valid.
	SessionExpiryHours int `yaml:"session_expiry_hours"`

	// MaxUploadBytes limits a single image upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// UploadTypes maps accepted upload content types to file extensions.
	UploadTypes map[string]string `yaml:"upload_types"`

	// GitBackend selects the git implementation: "exec" or "gogit".
	GitBackend string `yaml:"git_backend"`

	// BuildCommand is the site generator invocation. Empty selects the
	// default generator command.
	BuildCommand []string `yaml:"build_command"`

	// AllowAnonymous serves the rendered site without a session.
	// Writing always requires one.
	AllowAnonymous bool `yaml:"allow_anonymous"`

	// CommitName and CommitEmail identify the service as committer.
	CommitName  string `yaml:"commit_name"`
	CommitEmail string `yaml:"commit_email"`

	// LoginRatePerMin limits login attempts per client IP.
	LoginRatePerMin int `yaml:"login_rate_per_min"`
}

// DefaultServerConfig returns the default configuration, without a secret.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		SessionExpiryHours: 24 * 30,
		MaxUploadBytes:     wiki.DefaultMaxUploadBytes,
		UploadTypes:        wiki.DefaultUploadTypes,
		GitBackend:         "exec",
		CommitName:         "mdwiki",
		CommitEmail:        "mdwiki@localhost",
		LoginRatePerMin:    5,
	}
}

// Validate checks that the configuration is usable.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.SessionExpiryHours, validation.Min(1)),
		validation.Field(&c.MaxUploadBytes, validation.Min(1)),
		validation.Field(&c.UploadTypes, validation.Required),
		validation.Field(&c.GitBackend, validation.In("exec", "gogit")),
		validation.Field(&c.CommitName, validation.Required),
		validation.Field(&c.CommitEmail, validation.Required),
		validation.Field(&c.LoginRatePerMin, validation.Min(0)),
	)
}

// LoadServerConfig loads configuration from dataDir/config.yaml.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, "config.yaml")

	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
	}

	modified := false
	if cfg.JWTSecret == "" {
		secret, err := utils.GenerateToken(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		modified = true
	}

	if modified || errors.Is(err, os.ErrNotExist) {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.yaml.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "config.yaml"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return nil
}

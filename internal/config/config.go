package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// DefaultVersion is the pinned fallback release installed when no
// version input is provided.
const DefaultVersion = "v0.2.15"

// Config holds all inputs consumed from the invoking environment. In a
// GitHub Actions run the action inputs arrive as INPUT_* variables and
// the runner provides the tool cache root and the persistent PATH file.
type Config struct {
	Version     string `envconfig:"INPUT_VERSION"`
	GitHubToken string `envconfig:"INPUT_GITHUB_TOKEN"`
	APIKey      string `envconfig:"INPUT_APIKEY"`

	ToolCacheDir string `envconfig:"RUNNER_TOOL_CACHE"`
	GitHubPath   string `envconfig:"GITHUB_PATH"`
}

func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.ToolCacheDir == "" {
		cacheDir, cErr := os.UserCacheDir()
		if cErr != nil {
			return nil, fmt.Errorf("failed to determine tool cache directory: %w", cErr)
		}
		cfg.ToolCacheDir = filepath.Join(cacheDir, "setup-lekko")
	}
	return &cfg, nil
}

// Validate checks that the configuration can possibly authenticate. An
// empty token with an empty API key cannot complete the authenticated
// download, so it is rejected upfront.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version must not be empty")
	}
	if c.GitHubToken == "" && c.APIKey == "" {
		return fmt.Errorf("either a github_token or an apikey input is required")
	}
	return nil
}

package graphlake

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the connection settings shared by every sub-client of one
// Client.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.graphlake.io".
	BaseURL string `yaml:"baseUrl"`
	// APIKey authenticates via the X-API-Key header.
	APIKey string `yaml:"apiKey,omitempty"`
	// Token authenticates via a bearer Authorization header. Mutually
	// exclusive with APIKey.
	Token string `yaml:"token,omitempty"`
	// Headers are extra headers attached to every request.
	Headers map[string]string `yaml:"headers,omitempty"`
	// Timeout bounds each non-streaming HTTP request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LoadConfig reads graphlake.yml or graphlake.yaml from dir, then applies
// environment overrides (GRAPHLAKE_URL, GRAPHLAKE_API_KEY, GRAPHLAKE_TOKEN).
// A missing config file yields a zero-value config, not an error, so the
// environment alone is enough to configure a client.
func LoadConfig(dir string) (*Config, error) {
	// Timeout is declared as a string in the file so "30s" style values
	// work; yaml does not decode duration strings natively.
	var file struct {
		BaseURL string            `yaml:"baseUrl"`
		APIKey  string            `yaml:"apiKey"`
		Token   string            `yaml:"token"`
		Headers map[string]string `yaml:"headers"`
		Timeout string            `yaml:"timeout"`
	}
	cfg := &Config{}
	for _, name := range []string{"graphlake.yml", "graphlake.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, err
		}
		cfg.BaseURL = file.BaseURL
		cfg.APIKey = file.APIKey
		cfg.Token = file.Token
		cfg.Headers = file.Headers
		if file.Timeout != "" {
			d, err := time.ParseDuration(file.Timeout)
			if err != nil {
				return nil, fmt.Errorf("graphlake: invalid timeout %q in %s: %w", file.Timeout, name, err)
			}
			cfg.Timeout = d
		}
		break
	}

	if v := os.Getenv("GRAPHLAKE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GRAPHLAKE_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("GRAPHLAKE_TOKEN"); v != "" {
		cfg.Token = v
	}
	return cfg, nil
}

// Package config provides configuration loading and validation for the
// plugin binaries: the Qiita connection settings and the batch scheduler
// resource profiles.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the plugin configuration, loaded from a JSON file.
// Credentials may instead come from the environment (QP_WOLTKA_CLIENT_ID
// and QP_WOLTKA_CLIENT_SECRET), which wins over the file.
type Config struct {
	// Qiita oauth2 client credentials issued at plugin registration.
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// ServerInsecure accepts self-signed server certificates, common for
	// in-cluster Qiita deployments.
	ServerInsecure bool `json:"server_insecure,omitempty"`

	// Environment is the shell line the generated scripts run to enter
	// the conda environment holding bowtie2/woltka.
	Environment string `json:"environment"`

	// Scheduler selects the batch scheduler family: "torque" or "slurm".
	Scheduler string `json:"scheduler"`

	// Resources optionally points at a YAML resource profile file; when
	// empty the built-in defaults are used.
	Resources string `json:"resources,omitempty"`
}

// DefaultPath is where the plugin configuration is looked up when no
// explicit path is given.
func DefaultPath() string {
	if p := os.Getenv("QP_WOLTKA_CONFIG_FP"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".qiita_plugins", "qp-woltka.json")
}

// LoadConfig loads the plugin configuration from a JSON file. The file
// is checked against the embedded schema before decoding so malformed
// configs fail with field-level messages instead of zero values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Environment credentials win over the file.
	if id := os.Getenv("QP_WOLTKA_CLIENT_ID"); id != "" {
		cfg.ClientID = id
	}
	if secret := os.Getenv("QP_WOLTKA_CLIENT_SECRET"); secret != "" {
		cfg.ClientSecret = secret
	}

	return &cfg, nil
}

// Validate checks that the configuration can drive a job submission.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("config error: client_id and client_secret are required")
	}
	switch c.Scheduler {
	case "torque", "slurm":
	case "":
		return fmt.Errorf("config error: scheduler is required (torque or slurm)")
	default:
		return fmt.Errorf("config error: unknown scheduler %q (want torque or slurm)", c.Scheduler)
	}
	if c.Environment == "" {
		return fmt.Errorf("config error: environment is required")
	}
	return nil
}

package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	envServer    = "RELPROBE_SERVER"
	envAPIKey    = "RELPROBE_API_KEY"
	envModel     = "RELPROBE_MODEL"
	envDataDir   = "RELPROBE_DATA_DIR"
	envExportDir = "RELPROBE_EXPORT_DIR"
)

// Config represents the relprobe configuration file
// (~/.config/relprobe/config.yaml). Numeric fields are pointers so "not set"
// stays distinct from zero.
type Config struct {
	Server            string   `yaml:"server"`
	Model             string   `yaml:"model"`
	MaxLength         *int64   `yaml:"max_length"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	BatchSize         *int64   `yaml:"batch_size"`

	DataDir   string `yaml:"data_dir"`
	ExportDir string `yaml:"export_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "relprobe", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyCommonConfig fills the shared flag variables from the environment and
// the config file when the corresponding CLI flag was not explicitly set.
// Precedence is flag, then environment, then file.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if !c.IsSet("server") {
		if v := os.Getenv(envServer); v != "" {
			serverURL = v
		} else if cfg.Server != "" {
			serverURL = cfg.Server
		}
	}
	if !c.IsSet("api-key") {
		if v := os.Getenv(envAPIKey); v != "" {
			apiKey = v
		}
	}
	if !c.IsSet("model") && !c.IsSet("m") {
		if v := os.Getenv(envModel); v != "" {
			modelName = v
		} else if cfg.Model != "" {
			modelName = cfg.Model
		}
	}
	if cfg.MaxLength != nil && !c.IsSet("max-length") && !c.IsSet("max-len") {
		maxLength = *cfg.MaxLength
	}
	if cfg.RequestsPerSecond != nil && !c.IsSet("rps") {
		rps = *cfg.RequestsPerSecond
	}
	if cfg.BatchSize != nil && !c.IsSet("batch-size") && !c.IsSet("b") {
		batchSize = *cfg.BatchSize
	}
	if !c.IsSet("data-dir") {
		if v := os.Getenv(envDataDir); v != "" {
			dataDir = v
		} else if cfg.DataDir != "" {
			dataDir = cfg.DataDir
		}
	}
	if !c.IsSet("export-dir") && !c.IsSet("o") {
		if v := os.Getenv(envExportDir); v != "" {
			exportDir = v
		} else if cfg.ExportDir != "" {
			exportDir = cfg.ExportDir
		}
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

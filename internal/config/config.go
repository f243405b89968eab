package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries server settings and the LLM credential. The YAML file is
// optional; environment variables override whatever it contains.
type Config struct {
	Port      string `yaml:"port"`
	UploadDir string `yaml:"upload_dir"`

	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig holds the API settings for the standardization model.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	MaxParallel    int     `yaml:"max_parallel"`
}

// Defaults: gpt-4o-mini at temperature 0, at most 5 mapping requests in
// flight.
func defaults() Config {
	return Config{
		Port:      "8001",
		UploadDir: "./uploads",
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
			Temperature:    0,
			MaxParallel:    5,
		},
	}
}

// Load reads the YAML config file at path (if it exists) and applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if cfg.LLM.MaxParallel < 1 {
		cfg.LLM.MaxParallel = 1
	}
	return cfg, nil
}

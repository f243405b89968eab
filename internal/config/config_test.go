package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8001" {
		t.Errorf("Port = %q, want 8001", cfg.Port)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxParallel != 5 {
		t.Errorf("MaxParallel = %d, want 5", cfg.LLM.MaxParallel)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_keys.yaml")
	content := `port: "9000"
llm:
  api_key: sk-test
  model: gpt-4o
  timeout_seconds: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", cfg.LLM.Model)
	}
	if cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.LLM.TimeoutSeconds)
	}
	// Unset fields keep their defaults.
	if cfg.UploadDir != "./uploads" {
		t.Errorf("UploadDir = %q, want ./uploads", cfg.UploadDir)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a string"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want sk-env", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("Model = %q, want gpt-4.1-mini", cfg.LLM.Model)
	}
}

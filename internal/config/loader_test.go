package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/earshot-ai/earshot/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "earshot.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.Name != "whisper" {
		t.Errorf("providers.stt.name: got %q, want %q", cfg.Providers.STT.Name, "whisper")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}

func TestValidate_ValidMinimal(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  llm:
    name: ollama
    base_url: http://localhost:11434
    model: qwen3:8b
  stt:
    name: whisper-native
gating:
  actionable:
    name: keyword
    triggers: [assistant]
memory:
  postgres_dsn: "postgres://localhost/earshot"
  embedding_dimensions: 768
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NegativeMemoryLimits(t *testing.T) {
	t.Parallel()
	yaml := `
memory:
  max_turns: -1
  retrieve_k: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative memory limits, got nil")
	}
	if !strings.Contains(err.Error(), "must not be negative") {
		t.Errorf("error should mention negativity, got: %v", err)
	}
}

func TestValidate_UnknownProviderNameIsNotFatal(t *testing.T) {
	t.Parallel()
	// Unknown provider names only warn so third-party registrations work.
	yaml := `
providers:
  llm:
    name: my-custom-gateway
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames["llm"], "openai") {
		t.Error(`ValidProviderNames["llm"] should contain "openai"`)
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper"`)
	}
	if !slices.Contains(config.ValidProviderNames["vad"], "rms") {
		t.Error(`ValidProviderNames["vad"] should contain "rms"`)
	}
}

func TestValidClassifierNames(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"keyword", "httpapi"} {
		if !slices.Contains(config.ValidClassifierNames, name) {
			t.Errorf("ValidClassifierNames should contain %q", name)
		}
	}
}

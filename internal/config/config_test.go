package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Port)
	}
	if cfg.RunInterval != 5*time.Minute {
		t.Errorf("default run interval = %v", cfg.RunInterval)
	}
	if !cfg.RunOnStartup {
		t.Error("run on startup should default to true")
	}
	if cfg.DBPath == "" {
		t.Error("default db path empty")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RUN_INTERVAL", "30s")
	t.Setenv("RUN_ON_STARTUP", "false")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.RunInterval != 30*time.Second {
		t.Errorf("run interval = %v, want 30s", cfg.RunInterval)
	}
	if cfg.RunOnStartup {
		t.Error("run on startup should be false")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nDOTENV_A=hello\nexport DOTENV_B=\"quoted\"\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOTENV_A", "")
	t.Setenv("DOTENV_B", "")
	os.Unsetenv("DOTENV_A")
	os.Unsetenv("DOTENV_B")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_A"); got != "hello" {
		t.Errorf("DOTENV_A = %q", got)
	}
	if got := os.Getenv("DOTENV_B"); got != "quoted" {
		t.Errorf("DOTENV_B = %q", got)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DOTENV_C=file"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOTENV_C", "env")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_C"); got != "env" {
		t.Errorf("DOTENV_C = %q, existing env should win", got)
	}
}

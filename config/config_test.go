package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "mysql:\n  dsn: user:pass@tcp(localhost:3306)/videos\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != ":8080" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Pipeline.StageAttempts != 3 {
		t.Fatalf("stage attempts = %d", cfg.Pipeline.StageAttempts)
	}
	if cfg.Pipeline.BackoffBase() != 500*time.Millisecond {
		t.Fatalf("backoff base = %s", cfg.Pipeline.BackoffBase())
	}
	if cfg.Pipeline.BackoffMax() != 8*time.Second {
		t.Fatalf("backoff max = %s", cfg.Pipeline.BackoffMax())
	}

	cp := cfg.Pipeline.Checkpoints
	got := []int{cp.Analyze, cp.AssignVoices, cp.SynthesizeClips, cp.SynthesizeAudio,
		cp.Combine, cp.Enhance, cp.FinalReview, cp.Upload, cp.Finalize}
	want := []int{5, 15, 60, 70, 80, 90, 95, 98, 100}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("checkpoint %d = %d, want %d", i, got[i], want[i])
		}
	}
	// Checkpoints must ascend, or progress would stall between stages.
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("checkpoints not ascending: %v", got)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "mysql:\n  dsn: from-file\nredis:\n  addr: file:6379\n")

	t.Setenv("MYSQL_DSN", "from-env")
	t.Setenv("REDIS_ADDR", "env:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MySQL.DSN != "from-env" {
		t.Fatalf("dsn = %q", cfg.MySQL.DSN)
	}
	if cfg.Redis.Addr != "env:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
pipeline:
  stage_attempts: 5
  checkpoints:
    analyze: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != ":9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Pipeline.StageAttempts != 5 {
		t.Fatalf("stage attempts = %d", cfg.Pipeline.StageAttempts)
	}
	if cfg.Pipeline.Checkpoints.Analyze != 10 {
		t.Fatalf("analyze checkpoint = %d", cfg.Pipeline.Checkpoints.Analyze)
	}
	// Unset checkpoints still default.
	if cfg.Pipeline.Checkpoints.Finalize != 100 {
		t.Fatalf("finalize checkpoint = %d", cfg.Pipeline.Checkpoints.Finalize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

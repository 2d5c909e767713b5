package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsWeakSecret(t *testing.T) {
	cases := map[string]bool{
		"short":                            true,
		"change-me-in-production-please-x": true,
		"9f2c1b7e4d8a6f3e0c5b2a9d7e4f1c8b": false,
	}
	for secret, want := range cases {
		if got := IsWeakSecret(secret); got != want {
			t.Fatalf("IsWeakSecret(%q) want %v got %v", secret, want, got)
		}
	}
}

func TestCheckReleaseRejectsWeakSecret(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Mode = "release"
	cfg.AdminJWT.SecretKey = "change-me-in-production"

	if _, err := cfg.Check(true); !errors.Is(err, ErrWeakAdminSecret) {
		t.Fatalf("expected weak secret error, got %v", err)
	}
	// worker 模式不校验后台密钥
	if _, err := cfg.Check(false); err != nil {
		t.Fatalf("worker mode should skip admin checks, got %v", err)
	}
}

func TestCheckDebugWarns(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Mode = "debug"
	cfg.AdminJWT.SecretKey = "short"

	warnings, err := cfg.Check(true)
	if err != nil {
		t.Fatalf("debug mode should only warn, got %v", err)
	}
	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"admin_jwt.secret", "webhook.signature_key", "pos access token"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("warnings missing %q: %v", want, warnings)
		}
	}
}

func TestCheckRejectsInvalidSettings(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "mysql"
	if _, err := cfg.Check(false); err == nil {
		t.Fatalf("unsupported driver should fail")
	}

	cfg.Database.Driver = "postgres"
	cfg.Kafka.Enabled = true
	if _, err := cfg.Check(false); err == nil {
		t.Fatalf("kafka without brokers should fail")
	}
}

func TestPOSTokenFor(t *testing.T) {
	cfg := POSConfig{
		AccessToken:  "default-token",
		AccessTokens: map[string]string{"m-1": " merchant-token ", "m-2": " "},
	}
	if got := cfg.TokenFor(" m-1 "); got != "merchant-token" {
		t.Fatalf("merchant token want merchant-token got %q", got)
	}
	if got := cfg.TokenFor("m-2"); got != "default-token" {
		t.Fatalf("blank merchant token should fall back, got %q", got)
	}
	if got := cfg.TokenFor("unknown"); got != "default-token" {
		t.Fatalf("unknown merchant should fall back, got %q", got)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: "8080", Mode: "Release"}
	if cfg.Addr() != "127.0.0.1:8080" || !cfg.IsRelease() {
		t.Fatalf("unexpected server config helpers: %s release=%v", cfg.Addr(), cfg.IsRelease())
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.yml")
	body := "server:\n  port: \"9090\"\nloyalty:\n  outbox_batch_size: 7\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	t.Setenv(EnvPrefix+"_DATABASE_DSN", "file:env.db")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Loyalty.OutboxBatchSize != 7 {
		t.Fatalf("file values not applied: %+v %+v", cfg.Server, cfg.Loyalty)
	}
	if cfg.Database.DSN != "file:env.db" {
		t.Fatalf("env override not applied, dsn=%q", cfg.Database.DSN)
	}
	if cfg.Server.ShutdownTimeoutSeconds != 10 || cfg.Queue.Queues["critical"] <= cfg.Queue.Queues["default"] {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Server, cfg.Queue)
	}
}

func TestLoadFromMissingExplicitFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("explicit missing config file should fail")
	}
}

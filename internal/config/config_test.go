package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":4001" {
		t.Fatalf("expected default address, got %q", cfg.Server.Address)
	}
	if cfg.IAP.Apple.VerifyReceiptURL != DefaultAppleVerifyURL {
		t.Fatalf("unexpected verify url %q", cfg.IAP.Apple.VerifyReceiptURL)
	}
	if cfg.IAP.Apple.SandboxURL != DefaultAppleSandboxURL {
		t.Fatalf("unexpected sandbox url %q", cfg.IAP.Apple.SandboxURL)
	}
	if cfg.IAP.Table != "iap_subscriptions" {
		t.Fatalf("unexpected table %q", cfg.IAP.Table)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":9000"
database:
  driver: pgx
  url: postgres://localhost/iap
iap:
  table: purchases
  apple:
    shared_secret: from-file
    timeout: 12s
  google:
    package_name: com.example.app
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("IAP_APPLE_SHARED_SECRET", "from-env")
	t.Setenv("PORT", "8081")
	t.Setenv("APP_DEBUG", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8081" {
		t.Fatalf("PORT should win, got %q", cfg.Server.Address)
	}
	if cfg.IAP.Apple.SharedSecret != "from-env" {
		t.Fatalf("env should override file, got %q", cfg.IAP.Apple.SharedSecret)
	}
	if cfg.IAP.Apple.Timeout != 12*time.Second {
		t.Fatalf("unexpected apple timeout %s", cfg.IAP.Apple.Timeout)
	}
	if cfg.IAP.Apple.ConnectTimeout != 10*time.Second {
		t.Fatalf("connect timeout default lost: %s", cfg.IAP.Apple.ConnectTimeout)
	}
	if cfg.IAP.Google.PackageName != "com.example.app" || cfg.IAP.Table != "purchases" {
		t.Fatalf("file values not applied: %+v", cfg.IAP)
	}
	if !cfg.App.Debug {
		t.Fatal("expected debug from APP_DEBUG")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing url", func(c *Config) { c.Database.URL = "" }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, false},
		{"table injection", func(c *Config) { c.IAP.Table = "subs; DROP TABLE users" }, false},
		{"bad users table", func(c *Config) { c.IAP.UsersTable = "1users" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "user:pass@tcp(localhost:3306)/iap?parseTime=true"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

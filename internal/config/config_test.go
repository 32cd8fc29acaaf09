package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
accounts:
  - host: imap.example.com
    port: 993
    username: alice@example.com
    password: secret
  - host: imap.other.com
    username: bob@other.com
    password: hunter2
smtp:
  server: smtp.example.com
  port: 465
  auth_user: relay@example.com
  auth_password: relay-secret
  from_address: relay@example.com
forward_to:
  - dest@example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	config, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(config.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(config.Accounts))
	}
	if config.Accounts[0].Addr() != "imap.example.com:993" {
		t.Errorf("expected 'imap.example.com:993', got %q", config.Accounts[0].Addr())
	}
	// Port omitted defaults to IMAPS.
	if config.Accounts[1].Addr() != "imap.other.com:993" {
		t.Errorf("expected default port 993, got %q", config.Accounts[1].Addr())
	}

	if config.SMTP.Addr() != "smtp.example.com:465" {
		t.Errorf("expected 'smtp.example.com:465', got %q", config.SMTP.Addr())
	}
	if !config.SMTP.UseSSL {
		t.Error("expected use_ssl to default to true")
	}
	if config.StateFile != "uid_state.json" {
		t.Errorf("expected default state file, got %q", config.StateFile)
	}
	if len(config.ForwardTo) != 1 || config.ForwardTo[0] != "dest@example.com" {
		t.Errorf("unexpected forward_to: %v", config.ForwardTo)
	}
}

func TestLoadExplicitUseSSLFalse(t *testing.T) {
	content := strings.Replace(validConfig, "from_address: relay@example.com",
		"from_address: relay@example.com\n  use_ssl: false", 1)

	config, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if config.SMTP.UseSSL {
		t.Error("expected use_ssl false when set explicitly")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAILFWD_SMTP_AUTH_PASSWORD", "env-secret")
	t.Setenv("MAILFWD_STATE_FILE", "/var/lib/mailfwd/state.json")

	config, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if config.SMTP.AuthPassword != "env-secret" {
		t.Errorf("expected env override for auth password, got %q", config.SMTP.AuthPassword)
	}
	if config.StateFile != "/var/lib/mailfwd/state.json" {
		t.Errorf("expected env override for state file, got %q", config.StateFile)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "no accounts",
			mutate:  func(c string) string { return "smtp:" + strings.SplitN(c, "smtp:", 2)[1] },
			wantErr: "account",
		},
		{
			name:    "missing account password",
			mutate:  func(c string) string { return strings.Replace(c, "    password: secret\n", "", 1) },
			wantErr: "password",
		},
		{
			name:    "missing from address",
			mutate:  func(c string) string { return strings.Replace(c, "  from_address: relay@example.com\n", "", 1) },
			wantErr: "from_address",
		},
		{
			name:    "no recipients",
			mutate:  func(c string) string { return strings.SplitN(c, "forward_to:", 2)[0] },
			wantErr: "forward_to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(validConfig)))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

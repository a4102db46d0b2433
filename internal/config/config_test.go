package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "version = 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text defaults", cfg.Log)
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "version = 2\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for version != 1")
	}
}

func TestLoadParsesConnectionTable(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, `
version = 1

[connection]
destination = "12D3KooWAbcde2222222222222222222222222222222222222"
listen_host = "0.0.0.0:60006"

[connection.path]
hop = 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Connection == nil {
		t.Fatal("expected Connection to be populated")
	}

	if cfg.Connection.Path == nil || cfg.Connection.Path.Hop == nil || *cfg.Connection.Path.Hop != 2 {
		t.Errorf("Path = %+v, want hop=2", cfg.Connection.Path)
	}
}

func TestValidateRejectsHopOutOfRange(t *testing.T) {
	t.Parallel()

	hop := uint8(4)
	cfg := &Config{Version: 1, Connection: &ConnectionConfig{Path: &PathConfig{Hop: &hop}}}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for hop > 3")
	}
}

func TestValidateListenHostGrammar(t *testing.T) {
	t.Parallel()

	cases := []struct {
		host    string
		wantErr bool
	}{
		{"0.0.0.0:60006", false},
		{":60006", false},
		{"example.com", false},
		{"example.com:60006", false},
		{":99999", true},
		{"", true},
	}

	for _, tc := range cases {
		err := ValidateListenHost(tc.host)
		if (err != nil) != tc.wantErr {
			t.Errorf("listen_host %q: err = %v, wantErr = %v", tc.host, err, tc.wantErr)
		}
	}
}

func TestValidateRejectsUnknownCapability(t *testing.T) {
	t.Parallel()

	cfg := &Config{Version: 1, Connection: &ConnectionConfig{Capabilities: []string{"Teleport"}}}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown capability")
	}
}

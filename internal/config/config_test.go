package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.ReconnectDelay != 5*time.Second || cfg.NegotiationTimeout != 0 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if !cfg.Control.RequireSharing || cfg.Agent.Role != "host" || cfg.SendBuffer != 32 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	body := `
port: 9000
reconnect_delay: 250ms
agent:
  role: viewer
media:
  screens:
    - id: s1
      label: Main
viewer:
  forward_addr: 127.0.0.1:5004
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REMOTE_PORT", "9100")
	t.Setenv("REMOTE_CONTROL_REQUIRE_SHARING", "false")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want env override", cfg.Port)
	}
	if cfg.ReconnectDelay != 250*time.Millisecond || cfg.Agent.Role != "viewer" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Control.RequireSharing {
		t.Error("require_sharing env override not applied")
	}
	if len(cfg.Media.Screens) != 1 || cfg.Media.Screens[0].Label != "Main" {
		t.Errorf("screens = %+v", cfg.Media.Screens)
	}
	if cfg.Viewer.ForwardAddr != "127.0.0.1:5004" {
		t.Errorf("forward_addr = %q", cfg.Viewer.ForwardAddr)
	}
}

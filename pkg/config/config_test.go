package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_TELLER_DB_PASSWORD", "hunter2")

	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
  request_timeout: 90s
database:
  host: dbhost
  port: 5433
  user: teller
  password: ${TEST_TELLER_DB_PASSWORD}
  database: tellerdb
teller:
  local_chain_selector: 5009297550715157269
  local_teller_address: "0x1111111111111111111111111111111111111111"
  max_payload_bytes: 2048
transport:
  mode: loopback
  relayer_address: "0x2222222222222222222222222222222222222222"
auth:
  api_keys:
    - key: sekrit
      name: ops
      capabilities: ["chains:manage"]
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout.Std() != 90*time.Second {
		t.Fatalf("expected request_timeout 90s, got %s", cfg.Server.RequestTimeout)
	}
	// Defaults fill what the file omits.
	if cfg.Server.ShutdownTimeout.Std() != 30*time.Second {
		t.Fatalf("expected default shutdown_timeout 30s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Teller.SweepInterval.Std() != 5*time.Minute {
		t.Fatalf("expected default sweep_interval 5m, got %s", cfg.Teller.SweepInterval)
	}
	if !cfg.Monitoring.Enabled {
		t.Fatal("expected monitoring enabled by default")
	}

	if cfg.Database.Password != "hunter2" {
		t.Fatalf("expected env-expanded password, got %q", cfg.Database.Password)
	}
	if cfg.Teller.LocalChainSelector != 5009297550715157269 {
		t.Fatalf("unexpected selector %d", cfg.Teller.LocalChainSelector)
	}
	if cfg.Teller.MaxPayloadBytes != 2048 {
		t.Fatalf("expected max_payload_bytes 2048, got %d", cfg.Teller.MaxPayloadBytes)
	}
	if cfg.Transport.Mode != TransportModeLoopback {
		t.Fatalf("expected loopback mode, got %q", cfg.Transport.Mode)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Name != "ops" {
		t.Fatalf("unexpected api keys: %+v", cfg.Auth.APIKeys)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_RouterModeRequiresEthereum(t *testing.T) {
	path := writeConfig(t, `
database:
  user: teller
teller:
  local_chain_selector: 1337
  local_teller_address: "0x00000000000000000000000000000000000000aa"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected router mode without ethereum config to fail validation")
	}
	if !strings.Contains(err.Error(), "ethereum.rpc_url") {
		t.Fatalf("expected the rpc_url requirement in the error, got %v", err)
	}
}

func TestLoad_MissingTellerIdentity(t *testing.T) {
	path := writeConfig(t, `
database:
  user: teller
transport:
  mode: loopback
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected missing teller identity to fail validation")
	}
}

func TestLoad_InvalidTransportMode(t *testing.T) {
	path := writeConfig(t, `
database:
  user: teller
teller:
  local_chain_selector: 1337
  local_teller_address: "0x00000000000000000000000000000000000000aa"
transport:
  mode: carrier-pigeon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an unknown transport mode to fail validation")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatalf("UnmarshalText() failed: %v", err)
	}
	if d.Std() != 2*time.Minute+30*time.Second {
		t.Fatalf("expected 2m30s, got %s", d)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

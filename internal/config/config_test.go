package config_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Thirdegree/TheSentinel/internal/config"
)

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig("agent-1", "/tmp/sentinel")
	cfg.PublicCommunity = "videos"
	cfg.GlobalSignalCommunities = []string{"yt_killer", "thesentinelbot"}
	cfg.YouTube.APIKey = "test-key"
	cfg.Vault = config.VaultConfig{Type: "filesystem", Name: "audit", FSArchiveRoot: "/tmp/sentinel/vault"}

	var buf bytes.Buffer
	m := &config.Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.AgentID != "agent-1" {
		t.Errorf("agent id = %q, want %q", got.AgentID, "agent-1")
	}
	if got.PublicCommunity != "videos" {
		t.Errorf("public community = %q, want %q", got.PublicCommunity, "videos")
	}
	if len(got.GlobalSignalCommunities) != 2 {
		t.Errorf("global signals = %v, want 2 entries", got.GlobalSignalCommunities)
	}
	if got.YouTube.APIKey != "test-key" {
		t.Errorf("api key = %q, want %q", got.YouTube.APIKey, "test-key")
	}
	if got.Vault.Type != "filesystem" || got.Vault.FSArchiveRoot != "/tmp/sentinel/vault" {
		t.Errorf("vault config = %+v", got.Vault)
	}
	if got.Cache.Size != 128 {
		t.Errorf("cache size = %d, want 128", got.Cache.Size)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig("agent-1", "/data/sentinel")

	if cfg.LogDir != filepath.Join("/data/sentinel", "log") {
		t.Errorf("log dir = %q", cfg.LogDir)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("database type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Database.DataDir != filepath.Join("/data/sentinel", "data") {
		t.Errorf("data dir = %q", cfg.Database.DataDir)
	}
	if cfg.Cache.Size != 128 {
		t.Errorf("cache size = %d, want 128", cfg.Cache.Size)
	}
	if cfg.Encryption.CredentialsPath != filepath.Join("/data/sentinel", "credentials.toml.age") {
		t.Errorf("credentials path = %q", cfg.Encryption.CredentialsPath)
	}
}

func TestInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sentinel.toml")
	cfg := config.NewConfig("agent-1", "/data/sentinel")

	if err := config.Init(path, cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}

	got, err := config.ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if got.AgentID != "agent-1" {
		t.Errorf("agent id = %q, want %q", got.AgentID, "agent-1")
	}

	// Initializing over an existing file fails.
	if err := config.Init(path, cfg); err == nil {
		t.Error("expected Init to refuse overwriting an existing config")
	}
}

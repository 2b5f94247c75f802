package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yml")
	body := "json_rpc_url: https://api.devnet.solana.com\ncommitment: finalized\nkeypair_path: /tmp/file-key.json\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ARBORIST_RPC_URL", "testnet")
	t.Setenv("ARBORIST_KEYPAIR", "/tmp/env-key.json")

	flags := GlobalFlags{ConfigPath: configPath, URL: "l"}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RPCURL != "http://localhost:8899" {
		t.Fatalf("expected flag URL to win, got %s", settings.RPCURL)
	}
	if settings.KeypairPath != "/tmp/env-key.json" {
		t.Fatalf("expected env keypair to win over file, got %s", settings.KeypairPath)
	}
	if settings.Commitment != rpc.CommitmentFinalized {
		t.Fatalf("expected commitment from file, got %s", settings.Commitment)
	}
}

func TestLoadMissingConfigFileUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "absent.yml")})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RPCURL != DefaultRPCURL {
		t.Fatalf("expected default RPC URL, got %s", settings.RPCURL)
	}
	if settings.Commitment != DefaultCommitment {
		t.Fatalf("expected default commitment, got %s", settings.Commitment)
	}
	if settings.RPCTimeout != DefaultRPCTimeout {
		t.Fatalf("expected default timeout, got %s", settings.RPCTimeout)
	}
	if !settings.JournalEnabled {
		t.Fatal("journal should be enabled by default")
	}
}

func TestLoadRejectsBadCommitmentFlag(t *testing.T) {
	tmp := t.TempDir()
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "absent.yml"), Commitment: "super"})
	if err == nil {
		t.Fatal("expected error for unknown commitment")
	}
}

func TestLoadRPCTimeoutFlag(t *testing.T) {
	tmp := t.TempDir()
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "absent.yml"), RPCTimeoutSeconds: 30})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RPCTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", settings.RPCTimeout)
	}
}

func TestNormalizeRPCURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"m", "https://api.mainnet-beta.solana.com"},
		{"mainnet-beta", "https://api.mainnet-beta.solana.com"},
		{"t", "https://api.testnet.solana.com"},
		{"d", "https://api.devnet.solana.com"},
		{"l", "http://localhost:8899"},
		{"localhost", "http://localhost:8899"},
		{"https://rpc.example.com", "https://rpc.example.com"},
		{"  devnet  ", "https://api.devnet.solana.com"},
	}
	for _, tc := range cases {
		if got := NormalizeRPCURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeRPCURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseCommitment(t *testing.T) {
	if c, err := ParseCommitment(" Confirmed "); err != nil || c != rpc.CommitmentConfirmed {
		t.Fatalf("ParseCommitment: got %v, %v", c, err)
	}
	if _, err := ParseCommitment("recent"); err == nil {
		t.Fatal("expected error for unknown commitment level")
	}
}

func TestLoadSkipPreflightAndNoJournalFlags(t *testing.T) {
	tmp := t.TempDir()
	settings, err := Load(GlobalFlags{
		ConfigPath:    filepath.Join(tmp, "absent.yml"),
		SkipPreflight: true,
		NoJournal:     true,
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !settings.SkipPreflight {
		t.Fatal("expected preflight to be skipped")
	}
	if settings.JournalEnabled {
		t.Fatal("expected journal to be disabled")
	}
}

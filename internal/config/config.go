// Package config resolves CLI settings with the usual precedence: built-in
// defaults, then the Solana CLI config file, then ARBORIST_* environment
// variables, then flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	DefaultCommitment = rpc.CommitmentConfirmed
	DefaultRPCTimeout = 90 * time.Second
)

// GlobalFlags carry the raw persistent flag values before resolution.
type GlobalFlags struct {
	ConfigPath        string
	URL               string
	Keypair           string
	Commitment        string
	RPCTimeoutSeconds uint
	SkipPreflight     bool
	NoJournal         bool

	// Interactive signer toggles; flags only, never read from file or env.
	SkipSeedPhraseValidation bool
	ConfirmKey               bool
}

// Settings are the fully resolved values the commands consume.
type Settings struct {
	RPCURL          string
	KeypairPath     string
	Commitment      rpc.CommitmentType
	RPCTimeout      time.Duration
	SkipPreflight   bool
	JournalEnabled  bool
	JournalPath     string
	JournalLockPath string
}

// fileConfig mirrors the Solana CLI's ~/.config/solana/cli/config.yml so an
// existing installation works unchanged.
type fileConfig struct {
	JSONRPCURL  string `yaml:"json_rpc_url"`
	KeypairPath string `yaml:"keypair_path"`
	Commitment  string `yaml:"commitment"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.RPCTimeout <= 0 {
		settings.RPCTimeout = DefaultRPCTimeout
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	journalPath, lockPath, err := defaultJournalPaths()
	if err != nil {
		return Settings{}, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		RPCURL:          DefaultRPCURL,
		KeypairPath:     filepath.Join(home, ".config", "solana", "id.json"),
		Commitment:      DefaultCommitment,
		RPCTimeout:      DefaultRPCTimeout,
		JournalEnabled:  true,
		JournalPath:     journalPath,
		JournalLockPath: lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml"), nil
}

func defaultJournalPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "arborist")
	return filepath.Join(dir, "journal.db"), filepath.Join(dir, "journal.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.JSONRPCURL != "" {
		settings.RPCURL = NormalizeRPCURL(cfg.JSONRPCURL)
	}
	if cfg.KeypairPath != "" {
		settings.KeypairPath = cfg.KeypairPath
	}
	if cfg.Commitment != "" {
		c, err := ParseCommitment(cfg.Commitment)
		if err != nil {
			return fmt.Errorf("config commitment: %w", err)
		}
		settings.Commitment = c
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("ARBORIST_RPC_URL"); v != "" {
		settings.RPCURL = NormalizeRPCURL(v)
	}
	if v := os.Getenv("ARBORIST_KEYPAIR"); v != "" {
		settings.KeypairPath = v
	}
	if v := os.Getenv("ARBORIST_COMMITMENT"); v != "" {
		if c, err := ParseCommitment(v); err == nil {
			settings.Commitment = c
		}
	}
	if v := os.Getenv("ARBORIST_RPC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.RPCTimeout = d
		}
	}
	if v := os.Getenv("ARBORIST_SKIP_PREFLIGHT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.SkipPreflight = b
		}
	}
	if v := os.Getenv("ARBORIST_NO_JOURNAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.JournalEnabled = !b
		}
	}
	if v := os.Getenv("ARBORIST_JOURNAL_PATH"); v != "" {
		settings.JournalPath = v
	}
	if v := os.Getenv("ARBORIST_JOURNAL_LOCK_PATH"); v != "" {
		settings.JournalLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.URL) != "" {
		settings.RPCURL = NormalizeRPCURL(flags.URL)
	}
	if strings.TrimSpace(flags.Keypair) != "" {
		settings.KeypairPath = flags.Keypair
	}
	if strings.TrimSpace(flags.Commitment) != "" {
		c, err := ParseCommitment(flags.Commitment)
		if err != nil {
			return clierr.Wrap(clierr.KindUsage, "parse --commitment", err)
		}
		settings.Commitment = c
	}
	if flags.RPCTimeoutSeconds > 0 {
		settings.RPCTimeout = time.Duration(flags.RPCTimeoutSeconds) * time.Second
	}
	if flags.SkipPreflight {
		settings.SkipPreflight = true
	}
	if flags.NoJournal {
		settings.JournalEnabled = false
	}
	return nil
}

// NormalizeRPCURL expands the solana-cli monikers to full endpoint URLs and
// passes anything else through untouched.
func NormalizeRPCURL(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "m", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "t", "testnet":
		return "https://api.testnet.solana.com"
	case "d", "devnet":
		return "https://api.devnet.solana.com"
	case "l", "localhost":
		return "http://localhost:8899"
	default:
		return strings.TrimSpace(input)
	}
}

func ParseCommitment(input string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("commitment must be processed, confirmed, or finalized, got %q", input)
	}
}

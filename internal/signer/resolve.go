package signer

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

// ResolveOptions carries the interactive knobs that apply when a source
// requires seed-phrase recovery.
type ResolveOptions struct {
	SkipSeedPhraseValidation bool
	ConfirmPubkey            bool

	// Prompter and Stdin are injectable for tests; nil selects the real
	// terminal and process stdin.
	Prompter Prompter
	Stdin    io.Reader
}

// Resolve produces a private keypair from a parsed signer source. Each source
// kind is tried exactly once; re-prompting is the caller's decision.
func Resolve(source *Source, roleName string, opts ResolveOptions) (solana.PrivateKey, error) {
	prompter := opts.Prompter
	if prompter == nil {
		prompter = TerminalPrompter{}
	}

	switch source.Kind {
	case KindPrompt:
		return RecoverFromSeedPhrase(prompter, roleName, source.DerivationPath, source.Legacy, RecoverOptions{
			SkipValidation: opts.SkipSeedPhraseValidation,
			ConfirmPubkey:  opts.ConfirmPubkey,
		})
	case KindFilePath:
		keypair, err := solana.PrivateKeyFromSolanaKeygenFile(source.Path)
		if err != nil {
			return nil, clierr.Newf(clierr.KindResolution,
				"could not read keypair file %q. Run \"solana-keygen new\" to create a keypair file: %v",
				source.Path, err)
		}
		if err := validateKeypair(keypair); err != nil {
			return nil, clierr.Wrap(clierr.KindResolution,
				fmt.Sprintf("could not read keypair file %q", source.Path), err)
		}
		return keypair, nil
	case KindStdin:
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		keypair, err := readKeypair(in)
		if err != nil {
			return nil, clierr.Wrap(clierr.KindResolution, "could not read keypair from stdin", err)
		}
		return keypair, nil
	case KindUsb, KindPubkey:
		return nil, clierr.Newf(clierr.KindResolution, "signer of type `%s` does not support keypair output", source.Kind)
	default:
		return nil, clierr.Newf(clierr.KindResolution, "signer of type `%s` does not support keypair output", source.Kind)
	}
}

// readKeypair deserializes a keygen-format keypair (a JSON array of 64
// bytes) from a stream.
func readKeypair(r io.Reader) (solana.PrivateKey, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read keypair bytes: %w", err)
	}
	// The keygen format is a JSON array of numbers; []byte would decode
	// base64 instead.
	var raw []int
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair json: %w", err)
	}
	bytes := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
		}
		bytes[i] = byte(v)
	}
	keypair := solana.PrivateKey(bytes)
	if err := validateKeypair(keypair); err != nil {
		return nil, err
	}
	return keypair, nil
}

// validateKeypair checks the 64-byte layout and that the embedded public key
// matches the private half.
func validateKeypair(keypair solana.PrivateKey) error {
	if len(keypair) != ed25519.PrivateKeySize {
		return fmt.Errorf("keypair must be %d bytes, got %d", ed25519.PrivateKeySize, len(keypair))
	}
	derived := ed25519.NewKeyFromSeed(keypair[:ed25519.SeedSize])
	expected := solana.PrivateKey(derived).PublicKey()
	if !keypair.PublicKey().Equals(expected) {
		return fmt.Errorf("keypair public key does not match its private key")
	}
	return nil
}

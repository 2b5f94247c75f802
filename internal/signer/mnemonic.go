package signer

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

// RecoverOptions controls interactive seed-phrase recovery.
type RecoverOptions struct {
	// SkipValidation bypasses checksum and wordlist-language detection.
	SkipValidation bool
	// ConfirmPubkey displays the recovered pubkey and requires an explicit
	// "y" before the keypair is returned; any other answer aborts the
	// whole program.
	ConfirmPubkey bool
}

// wordlistLanguages is the fixed detection order. A phrase valid in several
// languages always resolves to the earliest entry (first-match policy).
var wordlistLanguages = []struct {
	name  string
	words []string
}{
	{"english", wordlists.English},
	{"chinese-simplified", wordlists.ChineseSimplified},
	{"chinese-traditional", wordlists.ChineseTraditional},
	{"japanese", wordlists.Japanese},
	{"spanish", wordlists.Spanish},
	{"korean", wordlists.Korean},
	{"french", wordlists.French},
	{"italian", wordlists.Italian},
}

// RecoverFromSeedPhrase prompts for a seed phrase and optional passphrase,
// then derives a keypair. Legacy mode derives directly from the stretched
// seed; otherwise the derivation path applies (empty path = default).
func RecoverFromSeedPhrase(prompter Prompter, roleName string, derivationPath DerivationPath, legacy bool, opts RecoverOptions) (solana.PrivateKey, error) {
	phrase, err := prompter.ReadSecret(fmt.Sprintf("[%s] seed phrase: ", roleName))
	if err != nil {
		return nil, clierr.Wrap(clierr.KindRecovery, "reading seed phrase", err)
	}
	phrase = sanitizeSeedPhrase(phrase)
	if phrase == "" {
		return nil, clierr.New(clierr.KindRecovery, "seed phrase is empty")
	}

	if !opts.SkipValidation {
		if _, err := detectLanguage(phrase); err != nil {
			return nil, err
		}
	}

	passphrasePrompt := fmt.Sprintf(
		"[%s] If this seed phrase has an associated passphrase, enter it now. Otherwise, press ENTER to continue: ",
		roleName,
	)
	passphrase, err := promptPassphrase(prompter, passphrasePrompt)
	if err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(phrase, passphrase)
	var keypair solana.PrivateKey
	if legacy {
		keypair, err = keypairFromSeed(seed)
	} else {
		keypair, err = keypairFromSeedAndPath(seed, derivationPath)
	}
	if err != nil {
		return nil, err
	}

	if opts.ConfirmPubkey {
		answer, err := prompter.ReadLine(fmt.Sprintf("Recovered pubkey `%s`. Continue? (y/n): ", keypair.PublicKey()))
		if err != nil {
			return nil, clierr.Wrap(clierr.KindRecovery, "reading confirmation", err)
		}
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			return nil, clierr.Abort("Exiting")
		}
	}

	return keypair, nil
}

// promptPassphrase reads an optional BIP-39 passphrase. A non-empty entry
// must be re-typed identically; a mismatch fails before any derivation.
func promptPassphrase(prompter Prompter, prompt string) (string, error) {
	passphrase, err := prompter.ReadSecret(prompt)
	if err != nil {
		return "", clierr.Wrap(clierr.KindRecovery, "reading passphrase", err)
	}
	if passphrase != "" {
		confirmed, err := prompter.ReadSecret("Enter same passphrase again: ")
		if err != nil {
			return "", clierr.Wrap(clierr.KindRecovery, "reading passphrase confirmation", err)
		}
		if confirmed != passphrase {
			return "", clierr.New(clierr.KindRecovery, "passphrases did not match")
		}
	}
	return passphrase, nil
}

// detectLanguage returns the first wordlist language whose checksum accepts
// the phrase. The bip39 package keeps its wordlist as package state, so the
// active list is restored before returning; recovery runs single-threaded at
// process start.
func detectLanguage(phrase string) (string, error) {
	original := bip39.GetWordList()
	defer bip39.SetWordList(original)

	for _, language := range wordlistLanguages {
		bip39.SetWordList(language.words)
		if bip39.IsMnemonicValid(phrase) {
			return language.name, nil
		}
	}
	return "", clierr.New(clierr.KindRecovery, "can't get mnemonic from seed phrases")
}

// sanitizeSeedPhrase trims the phrase and collapses internal whitespace runs
// to single spaces; word order and casing are preserved.
func sanitizeSeedPhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

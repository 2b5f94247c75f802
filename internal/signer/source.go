// Package signer resolves a signing keypair from a single textual token
// naming one of several key sources: an interactive seed-phrase prompt, a
// keygen file, a hardware wallet, standard input, or a bare public key.
package signer

import (
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

// SourceKind tags the key-acquisition strategy named by a signer token.
type SourceKind int

const (
	KindPrompt SourceKind = iota
	KindFilePath
	KindUsb
	KindStdin
	KindPubkey
)

func (k SourceKind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindFilePath:
		return "file"
	case KindUsb:
		return "usb"
	case KindStdin:
		return "stdin"
	case KindPubkey:
		return "pubkey"
	default:
		return "unknown"
	}
}

// Source is the parsed form of a signer token. Immutable once parsed.
type Source struct {
	Kind           SourceKind
	Path           string           // KindFilePath
	Locator        Locator          // KindUsb
	Pubkey         solana.PublicKey // KindPubkey
	DerivationPath DerivationPath
	Legacy         bool
}

const (
	// stdStreamToken selects standard input without a scheme.
	stdStreamToken = "-"
	// askKeyword selects a legacy-mode seed phrase prompt with no
	// derivation path.
	askKeyword = "ASK"
)

// ParseSource classifies a signer token. It performs no I/O beyond the final
// filesystem existence probe for bare path tokens.
func ParseSource(token string) (*Source, error) {
	token = normalizeToken(token)

	u, err := url.Parse(token)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindParse, "unrecognized signer source", err)
	}

	if u.Scheme != "" {
		scheme := strings.ToLower(u.Scheme)
		switch scheme {
		case "prompt":
			path, err := derivationPathFromQuery(u.RawQuery)
			if err != nil {
				return nil, err
			}
			return &Source{Kind: KindPrompt, DerivationPath: path}, nil
		case "file":
			return &Source{Kind: KindFilePath, Path: uriPath(u)}, nil
		case "usb":
			locator, err := parseLocator(u)
			if err != nil {
				return nil, err
			}
			path, err := derivationPathFromQuery(u.RawQuery)
			if err != nil {
				return nil, err
			}
			return &Source{Kind: KindUsb, Locator: locator, DerivationPath: path}, nil
		case "stdin":
			return &Source{Kind: KindStdin}, nil
		default:
			// A Windows drive letter parses as a single-character scheme.
			if runtime.GOOS == "windows" && len(scheme) == 1 {
				return &Source{Kind: KindFilePath, Path: token}, nil
			}
			return nil, clierr.Newf(clierr.KindParse, "unrecognized signer source scheme %q", scheme)
		}
	}

	switch token {
	case stdStreamToken:
		return &Source{Kind: KindStdin}, nil
	case askKeyword:
		return &Source{Kind: KindPrompt, Legacy: true}, nil
	}

	if pubkey, err := solana.PublicKeyFromBase58(token); err == nil {
		return &Source{Kind: KindPubkey, Pubkey: pubkey}, nil
	}

	if _, err := os.Stat(token); err != nil {
		return nil, clierr.Wrap(clierr.KindParse, "unrecognized signer source", err)
	}
	return &Source{Kind: KindFilePath, Path: token}, nil
}

// normalizeToken adjusts for cmd.exe quoting quirks: matched single quotes
// are stripped and backslashes become forward slashes. A pure string
// transform; no-op outside Windows.
func normalizeToken(token string) string {
	if runtime.GOOS != "windows" {
		return token
	}
	for strings.HasPrefix(token, "'") && strings.HasSuffix(token, "'") && len(token) >= 2 {
		token = token[1 : len(token)-1]
	}
	return strings.ReplaceAll(token, "\\", "/")
}

// uriPath returns the path component, tolerating both file:/path and
// file:///path forms.
func uriPath(u *url.URL) string {
	if u.Path != "" {
		return u.Path
	}
	return u.Opaque
}

// derivationPathFromQuery extracts an optional derivation path from a signer
// URI query. Exactly one of key= or full-path= is accepted; anything else in
// the query is a parse failure.
func derivationPathFromQuery(rawQuery string) (DerivationPath, error) {
	if rawQuery == "" {
		return nil, nil
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindParse, "malformed signer source query", err)
	}
	for name, entries := range values {
		if len(entries) > 1 {
			return nil, clierr.Newf(clierr.KindParse, "duplicate query parameter %q", name)
		}
		switch name {
		case "key", "full-path":
		default:
			return nil, clierr.Newf(clierr.KindParse, "unsupported query parameter %q", name)
		}
	}
	keyValue, hasKey := values["key"]
	fullValue, hasFull := values["full-path"]
	if hasKey && hasFull {
		return nil, clierr.New(clierr.KindParse, "query may specify either key or full-path, not both")
	}
	if hasKey {
		return parseKeyQueryPath(keyValue[0])
	}
	return parseFullPath(fullValue[0])
}

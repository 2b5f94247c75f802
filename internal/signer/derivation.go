package signer

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

const hardenedOffset = uint32(1) << 31

// PathComponent is a single child index in a hierarchical derivation path.
type PathComponent struct {
	Index    uint32
	Hardened bool
}

// DerivationPath is an ordered sequence of child indices applied to a master
// seed. The zero value (empty path) selects the default account path.
type DerivationPath []PathComponent

// DefaultDerivationPath is m/44'/501'/0'/0', the conventional first Solana
// account.
func DefaultDerivationPath() DerivationPath {
	return DerivationPath{
		{Index: 44, Hardened: true},
		{Index: 501, Hardened: true},
		{Index: 0, Hardened: true},
		{Index: 0, Hardened: true},
	}
}

func (p DerivationPath) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, c := range p {
		sb.WriteString("/")
		sb.WriteString(strconv.FormatUint(uint64(c.Index), 10))
		if c.Hardened {
			sb.WriteString("'")
		}
	}
	return sb.String()
}

// parseKeyQueryPath builds a path from the short "key=<account>[/<change>]"
// query form. Both components are hardened under the fixed m/44'/501' prefix.
func parseKeyQueryPath(value string) (DerivationPath, error) {
	path := DerivationPath{
		{Index: 44, Hardened: true},
		{Index: 501, Hardened: true},
	}
	if value == "" {
		return path, nil
	}
	parts := strings.Split(value, "/")
	if len(parts) > 2 {
		return nil, clierr.Newf(clierr.KindParse, "derivation key query %q has too many components", value)
	}
	for _, part := range parts {
		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil || uint32(index) >= hardenedOffset {
			return nil, clierr.Newf(clierr.KindParse, "invalid derivation index %q", part)
		}
		path = append(path, PathComponent{Index: uint32(index), Hardened: true})
	}
	return path, nil
}

// parseFullPath parses an explicit "m/44'/501'/..." style path. A trailing
// apostrophe marks a hardened component.
func parseFullPath(value string) (DerivationPath, error) {
	trimmed := strings.TrimPrefix(value, "m")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return DerivationPath{}, nil
	}
	parts := strings.Split(trimmed, "/")
	path := make(DerivationPath, 0, len(parts))
	for _, part := range parts {
		hardened := strings.HasSuffix(part, "'")
		raw := strings.TrimSuffix(part, "'")
		index, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || uint32(index) >= hardenedOffset {
			return nil, clierr.Newf(clierr.KindParse, "invalid derivation index %q in path %q", part, value)
		}
		path = append(path, PathComponent{Index: uint32(index), Hardened: hardened})
	}
	return path, nil
}

// keypairFromSeed builds an ed25519 keypair directly from the first 32 bytes
// of the stretched seed, ignoring any derivation path (legacy behavior).
func keypairFromSeed(seed []byte) (solana.PrivateKey, error) {
	if len(seed) < ed25519.SeedSize {
		return nil, clierr.Newf(clierr.KindRecovery, "seed is too short: %d bytes", len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return solana.PrivateKey(key), nil
}

// keypairFromSeedAndPath derives an ed25519 keypair from the seed along the
// given path using SLIP-10. ed25519 only supports hardened derivation, so
// every component hardens regardless of its flag, matching upstream wallets.
func keypairFromSeedAndPath(seed []byte, path DerivationPath) (solana.PrivateKey, error) {
	if len(path) == 0 {
		path = DefaultDerivationPath()
	}
	key, chainCode := slip10Master(seed)
	for _, component := range path {
		key, chainCode = slip10Child(key, chainCode, component.Index|hardenedOffset)
	}
	return keypairFromSeed(key)
}

func slip10Master(seed []byte) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func slip10Child(key, chainCode []byte, index uint32) (childKey, childChain []byte) {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

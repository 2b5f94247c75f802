package signer

import (
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

// Locator identifies a hardware wallet: usb://<manufacturer>[/<pubkey>].
// Only Ledger devices are recognized.
type Locator struct {
	Manufacturer string
	Pubkey       *solana.PublicKey
}

func (l Locator) String() string {
	out := "usb://" + l.Manufacturer
	if l.Pubkey != nil {
		out += "/" + l.Pubkey.String()
	}
	return out
}

func parseLocator(u *url.URL) (Locator, error) {
	manufacturer := strings.ToLower(u.Host)
	if manufacturer == "" {
		// usb:ledger (no authority) puts the manufacturer in the path.
		trimmed := strings.Trim(u.Path, "/")
		parts := strings.SplitN(trimmed, "/", 2)
		manufacturer = strings.ToLower(parts[0])
	}
	if manufacturer == "" {
		return Locator{}, clierr.New(clierr.KindParse, "hardware wallet locator is missing a manufacturer")
	}
	if manufacturer != "ledger" {
		return Locator{}, clierr.Newf(clierr.KindParse, "unknown hardware wallet manufacturer %q", manufacturer)
	}

	locator := Locator{Manufacturer: manufacturer}
	rest := strings.Trim(u.Path, "/")
	if u.Host == "" {
		// Drop the manufacturer segment consumed above.
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[idx+1:]
		} else {
			rest = ""
		}
	}
	if rest != "" {
		if strings.Contains(rest, "/") {
			return Locator{}, clierr.Newf(clierr.KindParse, "hardware wallet locator has too many path components: %q", u.Path)
		}
		pubkey, err := solana.PublicKeyFromBase58(rest)
		if err != nil {
			return Locator{}, clierr.Wrap(clierr.KindParse, "invalid hardware wallet pubkey", err)
		}
		locator.Pubkey = &pubkey
	}
	return locator, nil
}

// address.go validates and converts the bech32 (P2WPKH) BTC addresses this
// protocol is restricted to, grounded on the same txscript/btcutil pairing
// genLockScript uses for output scripts.
package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/jude-swap/swap/common"
)

// ErrNotBech32 is returned when an address is syntactically valid but not a
// P2WPKH bech32 address, the only kind this protocol accepts.
var ErrNotBech32 = fmt.Errorf("bitcoin: address is not a bech32 (P2WPKH) address")

// ParseBech32Address decodes addr under params and rejects anything that
// isn't a witness-v0 pubkey-hash address: this protocol only ever deals
// in bech32 (P2WPKH) BTC addresses.
func ParseBech32Address(addr string, params *chaincfg.Params) (btcutil.Address, error) {
	a, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: invalid address %q: %w", addr, err)
	}
	if !a.IsForNet(params) {
		return nil, fmt.Errorf("%w: %s", common.ErrNetworkMismatch, addr)
	}
	if _, ok := a.(*btcutil.AddressWitnessPubKeyHash); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBech32, addr)
	}
	return a, nil
}

// AddressToScript converts a validated address into its P2WPKH output
// script, the form BuildRefundTx/BuildPunishTx/BuildRedeemTx need for their
// destination outputs.
func AddressToScript(addr string, params *chaincfg.Params) ([]byte, error) {
	a, err := ParseBech32Address(addr, params)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(a)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: failed to build output script for %s: %w", addr, err)
	}
	return script, nil
}

package common

import (
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"
)

var numJudeUnits = math.Pow(10, 12)

// BtcAmount represents some amount of satoshi, the smallest denomination of bitcoin.
type BtcAmount uint64

// BtcToSats converts a standard BTC amount into satoshis.
func BtcToSats(amount float64) BtcAmount {
	return BtcAmount(amount * 1e8)
}

// Uint64 ...
func (a BtcAmount) Uint64() uint64 {
	return uint64(a)
}

// AsBtc converts the satoshi BtcAmount into standard BTC units.
func (a BtcAmount) AsBtc() float64 {
	return float64(a) / 1e8
}

// JudeAmount represents some amount of piconero-equivalent units, the smallest
// denomination of JUDE.
type JudeAmount uint64

// JudeToPiconero converts a standard JUDE amount into the smallest denomination.
func JudeToPiconero(amount float64) JudeAmount {
	return JudeAmount(amount * numJudeUnits)
}

// Uint64 ...
func (a JudeAmount) Uint64() uint64 {
	return uint64(a)
}

// AsJude converts the piconero JudeAmount into standard units.
func (a JudeAmount) AsJude() float64 {
	return float64(a) / numJudeUnits
}

// ParseDecimalAmount parses a user-supplied decimal amount (CLI flags, config
// files) with apd, rejecting malformed input, and returns it as a float64;
// the result has float64 precision, so digits beyond it are rounded away.
func ParseDecimalAmount(s string) (float64, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	f, err := d.Float64()
	if err != nil {
		return 0, fmt.Errorf("amount %q out of range: %w", s, err)
	}

	return f, nil
}

// ExchangeRate is the price of 1 JUDE in BTC.
type ExchangeRate float64

// ToBtc converts a JUDE amount into the equivalent BTC amount at this rate.
func (r ExchangeRate) ToBtc(jude JudeAmount) BtcAmount {
	return BtcToSats(jude.AsJude() * float64(r))
}

package srp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// Hex decoding errors.
var (
	ErrOddLength  = errors.New("hex value has odd length")
	ErrInvalidHex = errors.New("hex value contains a non-hex character")
)

// EncodeHex returns the lowercase hex form of b.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex parses a hex string. Odd-length input and non-hex characters
// are rejected rather than truncated.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err == nil {
		return b, nil
	}
	var invalid hex.InvalidByteError
	switch {
	case errors.As(err, &invalid):
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, rune(invalid))
	case errors.Is(err, hex.ErrLength):
		return nil, fmt.Errorf("%w: %d characters", ErrOddLength, len(s))
	default:
		return nil, err
	}
}

// decodeInt parses a hex string into a non-negative integer.
func decodeInt(s string) (*big.Int, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// encodeInt returns the hex form of n's minimal big-endian bytes.
func encodeInt(n *big.Int) string {
	return EncodeHex(n.Bytes())
}

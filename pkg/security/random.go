package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	// DigitCharset backs numeric codes such as OTPs and card numbers.
	DigitCharset = "0123456789"
	// UpperAlphanumericCharset backs virtual card identifiers.
	UpperAlphanumericCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomString draws length characters uniformly from charset.
func RandomString(length int, charset string) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	if charset == "" {
		return "", errors.New("charset is required")
	}
	n := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("random index: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}

// RandomDigits keeps leading zeros.
func RandomDigits(length int) (string, error) {
	return RandomString(length, DigitCharset)
}

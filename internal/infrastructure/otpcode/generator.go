package otpcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// MaxDigits keeps 10^digits inside int64.
const MaxDigits = 18

// Generator produces fixed-width numeric codes.
type Generator struct {
	// Reader is the entropy source; crypto/rand when nil.
	Reader io.Reader
}

// Generate returns a uniform value in [10^(digits-1), 10^digits - 1] as exactly digits characters.
func (g Generator) Generate(digits int) (string, error) {
	if digits < 1 || digits > MaxDigits {
		return "", fmt.Errorf("unsupported code length %d", digits)
	}

	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))

	n, err := rand.Int(reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}
	n.Add(n, low)

	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// Valid reports whether code is exactly digits ASCII digits.
func Valid(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewCode returns a uniformly random numeric code of exactly digits characters,
// left padded with zeros.
func NewCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

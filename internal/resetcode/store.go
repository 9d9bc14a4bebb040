package resetcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTTL is how long a reset code stays valid
const DefaultTTL = 15 * time.Minute

// ErrCodeInvalid is returned when a code is missing, expired or wrong
var ErrCodeInvalid = errors.New("reset code is invalid or expired")

// Store holds one-time password reset codes with an expiry. Codes are
// consumed on successful verification, so each one works at most once.
type Store interface {
	// Set stores the code for an email, replacing any previous one
	Set(ctx context.Context, email, code string, ttl time.Duration) error

	// Consume verifies the code for an email and deletes it on match.
	// Returns ErrCodeInvalid when the code is missing, expired or wrong.
	Consume(ctx context.Context, email, code string) error
}

// Generate produces a 6-digit numeric reset code
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

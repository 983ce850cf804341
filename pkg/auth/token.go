package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	// VerificationCodeLength is the number of symbols in an email verification code.
	VerificationCodeLength = 8
	// VerificationCodeTTL is how long a verification code stays valid.
	VerificationCodeTTL = 15 * time.Minute
	// ResetTokenBytes is the amount of randomness in a password reset token.
	ResetTokenBytes = 32
	// ResetTokenTTL is how long a password reset token stays valid.
	ResetTokenTTL = 60 * time.Minute
	// MaxVerificationAttempts caps wrong guesses against a single code.
	MaxVerificationAttempts = 5
)

// verificationAlphabet has no 0/O or 1/I so codes survive being read aloud.
const verificationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Clock returns the current time.
type Clock func() time.Time

// TokenService issues verification codes and password reset tokens.
type TokenService struct {
	now Clock
}

// NewTokenService creates a token service. A nil clock uses time.Now.
func NewTokenService(clock Clock) *TokenService {
	if clock == nil {
		clock = time.Now
	}
	return &TokenService{now: clock}
}

// Now returns the service clock's current time.
func (ts *TokenService) Now() time.Time {
	return ts.now()
}

// GenerateVerificationCode returns a random code drawn uniformly from the
// verification alphabet.
func (ts *TokenService) GenerateVerificationCode() (string, error) {
	max := big.NewInt(int64(len(verificationAlphabet)))
	code := make([]byte, VerificationCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		code[i] = verificationAlphabet[n.Int64()]
	}
	return string(code), nil
}

// VerificationExpiry returns the expiry for a code issued now.
func (ts *TokenService) VerificationExpiry() time.Time {
	return ts.now().Add(VerificationCodeTTL)
}

// GeneratePasswordResetToken returns 32 random bytes, hex encoded.
func (ts *TokenService) GeneratePasswordResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// PasswordResetExpiry returns the expiry for a reset token issued now.
func (ts *TokenService) PasswordResetExpiry() time.Time {
	return ts.now().Add(ResetTokenTTL)
}

// IsExpired reports whether the instant has passed. A nil expiry counts as expired.
func (ts *TokenService) IsExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return ts.now().After(*expiresAt)
}

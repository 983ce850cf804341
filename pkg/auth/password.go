package auth

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum number of characters in a password.
	MinPasswordLength = 12
	// MinCharacterClasses is how many of upper, lower, digit and special a password needs.
	MinCharacterClasses = 3
)

const (
	msgPasswordTooShort = "Password must be at least %d characters long"
	msgPasswordClasses  = "Password must contain at least %d of the following: uppercase letters, lowercase letters, numbers, special characters"
	msgPasswordBreached = "This password has appeared in a known data breach. Please choose a different password."
	msgPasswordInvalid  = "Password does not meet requirements"
)

// ComplexityResult lists every complexity rule a password violated.
type ComplexityResult struct {
	Valid   bool
	Reasons []string
}

// PasswordPolicy enforces length, character-class and breach rules.
type PasswordPolicy struct {
	minLength  int
	minClasses int
	breach     BreachChecker
}

// NewPasswordPolicy creates the default policy. A nil checker disables the
// breach lookup.
func NewPasswordPolicy(breach BreachChecker) *PasswordPolicy {
	return &PasswordPolicy{
		minLength:  MinPasswordLength,
		minClasses: MinCharacterClasses,
		breach:     breach,
	}
}

// CheckComplexity evaluates the local rules only.
func (p *PasswordPolicy) CheckComplexity(password string) ComplexityResult {
	var reasons []string

	if utf8.RuneCountInString(password) < p.minLength {
		reasons = append(reasons, fmt.Sprintf(msgPasswordTooShort, p.minLength))
	}
	if countCharacterClasses(password) < p.minClasses {
		reasons = append(reasons, fmt.Sprintf(msgPasswordClasses, p.minClasses))
	}

	return ComplexityResult{Valid: len(reasons) == 0, Reasons: reasons}
}

// Validate runs the complexity rules and, only if they pass, the breach lookup.
func (p *PasswordPolicy) Validate(ctx context.Context, password string) error {
	result := p.CheckComplexity(password)
	if !result.Valid {
		return NewValidationError(msgPasswordInvalid, result.Reasons...)
	}

	if p.breach != nil && p.breach.IsBreached(ctx, password) {
		return NewValidationError(msgPasswordInvalid, msgPasswordBreached)
	}
	return nil
}

func countCharacterClasses(password string) int {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	n := 0
	for _, present := range []bool{upper, lower, digit, special} {
		if present {
			n++
		}
	}
	return n
}

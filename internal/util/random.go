// Package util provides small helpers shared across the bot: identifier and
// one-time-code generation and environment variable parsing.
package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID in the format "{prefix}{hex}".
// It is not suitable for secrets; use GenerateOTP for codes sent to members.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random lowercase hexadecimal string.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[mrand.IntN(16)])
	}
	return builder.String()
}

// GenerateOTP returns a numeric one-time code of the given number of digits
// drawn from crypto/rand. Leading zeros are kept.
func GenerateOTP(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid OTP length %d", digits)
	}
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// GenerateOutboxID generates an outbox message ID with "outbox_" prefix.
func GenerateOutboxID() string {
	return GenerateRandomID("outbox_", 32)
}

// GenerateJobID generates a job ID with "job_" prefix.
func GenerateJobID() string {
	return GenerateRandomID("job_", 32)
}

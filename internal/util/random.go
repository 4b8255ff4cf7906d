// Package util provides utility functions for the ResumePipe application.
package util

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strings"
)

// codeAlphabet omits characters that are easy to confuse when typed from a
// printed slip (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
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

// GenerateVerificationCode returns an upper-case access code drawn from
// crypto/rand. Codes gate access to the bot, so they must not be predictable.
func GenerateVerificationCode(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	max := big.NewInt(int64(len(codeAlphabet)))
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(codeAlphabet[n.Int64()])
	}

	return builder.String(), nil
}

// GenerateSessionID generates a session ID with "s_" prefix, used to correlate log lines.
func GenerateSessionID() string {
	return GenerateRandomID("s_", 16)
}

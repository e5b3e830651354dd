package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

const (
	// StaticCodeCount is how many one-time codes a user receives at a time.
	StaticCodeCount  = 10
	staticCodeDigits = 8
)

// GenerateStaticCodes returns n random numeric one-time codes.
// Uses crypto/rand for randomness; codes are distinct.
func GenerateStaticCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(codes) < n {
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes, nil
}

func generateCode() (string, error) {
	s := make([]byte, staticCodeDigits)
	ten := big.NewInt(10)
	for i := range s {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(d.Int64())
	}
	return string(s), nil
}

// HashCode returns a SHA-256 hash of the code, hex-encoded.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// HashCodes hashes every code in order.
func HashCodes(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = HashCode(c)
	}
	return out
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(provided, storedHash string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(provided)), []byte(storedHash)) == 1
}

// Consume checks provided against the stored hashes. On a match it returns the
// remaining hashes with the used one removed; codes are single use.
func Consume(provided string, hashes []string) ([]string, bool) {
	for i, h := range hashes {
		if CodeEqual(provided, h) {
			rest := make([]string, 0, len(hashes)-1)
			rest = append(rest, hashes[:i]...)
			return append(rest, hashes[i+1:]...), true
		}
	}
	return hashes, false
}

package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// MinCredentialLength is the shortest credential GenerateCredential produces.
const MinCredentialLength = 16

// Character classes drawn from by GenerateCredential. Symbols is the ASCII
// punctuation set.
const (
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Digits    = "0123456789"
	Symbols   = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	alphabet  = Uppercase + Lowercase + Digits + Symbols
)

// ErrCredentialTooShort is returned for lengths below MinCredentialLength.
var ErrCredentialTooShort = fmt.Errorf("credential length must be at least %d", MinCredentialLength)

var classes = []string{Uppercase, Lowercase, Digits, Symbols}

// GenerateCredential returns a random credential of exactly length characters
// containing at least one character of every class. All randomness comes from
// crypto/rand; the required characters are shuffled into random positions.
func GenerateCredential(length int) (string, error) {
	if length < MinCredentialLength {
		return "", ErrCredentialTooShort
	}
	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, errors.Join(errors.New("read random source"), err)
	}
	return int(v.Int64()), nil
}

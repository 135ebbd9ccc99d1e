package rainbow

import (
	"encoding/hex"
	"strings"
)

const (
	Alphabet          = "abcdefghijklmnopqrstuvwxyz0123456789"
	MinPasswordLength = 1
	MaxPasswordLength = 8
	DigestSize        = 8
)

// Digest is the output of the table hash primitive.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestFromBytes copies b into a Digest. b must be exactly DigestSize bytes long.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, validationErrorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest decodes a 16 character hex digest.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2*DigestSize {
		return Digest{}, validationErrorf("digest must be %d hex characters, got %d", 2*DigestSize, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, validationErrorf("digest %q is not hex: %v", s, err)
	}
	return DigestFromBytes(b)
}

func ValidateLength(length int) error {
	if length < MinPasswordLength || length > MaxPasswordLength {
		return validationErrorf("password length must be between %d and %d, got %d",
			MinPasswordLength, MaxPasswordLength, length)
	}
	return nil
}

// ValidatePassword checks that p has exactly length characters from Alphabet.
func ValidatePassword(p string, length int) error {
	if err := ValidateLength(length); err != nil {
		return err
	}
	if len(p) != length {
		return validationErrorf("password %q must have length %d", p, length)
	}
	for i := 0; i < len(p); i++ {
		if strings.IndexByte(Alphabet, p[i]) < 0 {
			return validationErrorf("password %q contains disallowed character %q", p, p[i])
		}
	}
	return nil
}

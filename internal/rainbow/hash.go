package rainbow

import (
	"crypto/cipher"
	"crypto/des"
)

const (
	DESHasherName = "des-rainbow1"
	desKey        = "RAINBOW1"
)

// Hasher is the digest primitive chains are built with. Implementations must
// be deterministic and safe for concurrent use.
type Hasher interface {
	Name() string
	Hash(password string) Digest
}

type desHasher struct {
	block cipher.Block
}

// NewDESHasher returns the DES-ECB primitive keyed with "RAINBOW1": the
// password is PKCS#7 padded and the first ciphertext block is the digest.
func NewDESHasher() Hasher {
	block, err := des.NewCipher([]byte(desKey))
	if err != nil {
		// the key is a constant of valid size
		panic(err)
	}
	return &desHasher{block: block}
}

func (h *desHasher) Name() string {
	return DESHasherName
}

func (h *desHasher) Hash(password string) Digest {
	var src, dst Digest
	n := copy(src[:], password)
	if n < des.BlockSize {
		pad := byte(des.BlockSize - n)
		for i := n; i < des.BlockSize; i++ {
			src[i] = pad
		}
	}
	h.block.Encrypt(dst[:], src[:])
	return dst
}

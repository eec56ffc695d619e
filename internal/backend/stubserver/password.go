package stubserver

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/argon2"
)

// Hashing parameters sized for an interactive demo server, not for production storage.
const (
	hashMemoryKB    uint32 = 8 * 1024
	hashTime        uint32 = 1
	hashParallelism uint8  = 1
	hashSaltLength         = 16
	hashKeyLength   uint32 = 32
)

type passwordHash struct {
	salt []byte
	hash []byte
}

func hashPassword(password string) (passwordHash, error) {
	salt := make([]byte, hashSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return passwordHash{}, err
	}
	return passwordHash{salt: salt, hash: derive(password, salt)}, nil
}

func (p passwordHash) matches(password string) bool {
	return subtle.ConstantTimeCompare(derive(password, p.salt), p.hash) == 1
}

func derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, hashTime, hashMemoryKB, hashParallelism, hashKeyLength)
}

package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/teamup-app/teamup-backend/pkg/config"
)

// ErrInvalidHash is returned when a stored hash cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash")

// PasswordHasher hashes and verifies passwords using Argon2id. Parameters are
// encoded into the hash so they can evolve without invalidating stored hashes.
type PasswordHasher struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
	saltLen     int
	keyLen      uint32
}

// NewPasswordHasher builds a hasher from configuration.
func NewPasswordHasher(cfg config.PasswordConfig) *PasswordHasher {
	h := &PasswordHasher{
		memoryKB:    uint32(cfg.ArgonMemoryKB),
		time:        uint32(cfg.ArgonTime),
		parallelism: uint8(cfg.ArgonParallelism),
		saltLen:     cfg.ArgonSaltLen,
		keyLen:      uint32(cfg.ArgonKeyLen),
	}
	if h.memoryKB == 0 {
		h.memoryKB = 64 * 1024
	}
	if h.time == 0 {
		h.time = 3
	}
	if h.parallelism == 0 {
		h.parallelism = 2
	}
	if h.saltLen == 0 {
		h.saltLen = 16
	}
	if h.keyLen == 0 {
		h.keyLen = 32
	}
	return h
}

// HashPassword derives an Argon2id hash using the provided parameters.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	return NewPasswordHasher(cfg).Hash(password)
}

// VerifyPassword checks a password against a stored hash. Parameters come
// from the hash itself.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return (&PasswordHasher{}).Verify(password, encodedHash)
}

// Hash derives an Argon2id hash for the password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.time, h.memoryKB, h.parallelism, h.keyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memoryKB,
		h.time,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether the password matches the stored hash.
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidHash
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memoryKB, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKB, &iterations, &parallelism); err != nil {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), salt, iterations, memoryKB, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

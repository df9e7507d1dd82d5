// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultArgon2Memory      = 64 * 1024 // 64 MB
	DefaultArgon2Iterations  = 1
	DefaultArgon2Parallelism = 4
	DefaultArgon2SaltLength  = 16
	DefaultArgon2KeyLength   = 32
)

// maxArgon2Memory bounds the memory parameter accepted from a stored hash (4 GiB).
const maxArgon2Memory = 4 * 1024 * 1024

// ErrEmptySecret is returned when attempting to hash an empty secret.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("secret cannot be empty")

// Argon2Params is the argon2id work factor.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the OWASP baseline parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      DefaultArgon2Memory,
		Iterations:  DefaultArgon2Iterations,
		Parallelism: DefaultArgon2Parallelism,
		SaltLength:  DefaultArgon2SaltLength,
		KeyLength:   DefaultArgon2KeyLength,
	}
}

// Validate checks that the parameters are usable by argon2.IDKey.
func (p Argon2Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("iterations must be at least 1")
	case p.Parallelism < 1:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("parallelism must be at least 1")
	case p.Memory < 8*uint32(p.Parallelism):
		return oops.Code("AUTH_INVALID_HASH_PARAMS").
			With("memory", p.Memory).
			Errorf("memory must be at least 8 KiB per thread")
	case p.SaltLength < 8:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("salt length must be at least 8 bytes")
	case p.KeyLength < 16:
		return oops.Code("AUTH_INVALID_HASH_PARAMS").Errorf("key length must be at least 16 bytes")
	}
	return nil
}

// SecretHasher hashes and verifies secrets (passwords and verification codes).
type SecretHasher interface {
	// Hash produces a salted one-way hash of the secret.
	Hash(secret string) (string, error)

	// Verify checks if the secret matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(secret, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be recomputed with the
	// current algorithm and parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements SecretHasher using argon2id.
// Legacy bcrypt hashes are accepted by Verify and always need an upgrade.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with the given work factor.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the secret.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the secret matches the hash.
func (h *Argon2idHasher) Verify(secret, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(secret, encodedHash)
	}

	decoded, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), decoded.salt, decoded.params.Iterations,
		decoded.params.Memory, decoded.params.Parallelism, decoded.params.KeyLength)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id or was produced with
// weaker parameters than the hasher's.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	decoded, err := decodeArgon2id(hash)
	if err != nil {
		return true
	}
	p := decoded.params
	return p.Memory < h.params.Memory ||
		p.Iterations < h.params.Iterations ||
		p.Parallelism < h.params.Parallelism ||
		p.KeyLength < h.params.KeyLength
}

type argon2idHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2id(encodedHash string) (*argon2idHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	// argon2.IDKey panics on zero time or threads.
	if iterations < 1 || threads < 1 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("iterations and threads must be positive")
	}
	if threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}
	if memory > maxArgon2Memory {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d exceeds limit", memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	keyLen := len(key)
	if keyLen <= 0 || keyLen > 1<<30 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	return &argon2idHash{
		params: Argon2Params{
			Memory:      memory,
			Iterations:  iterations,
			Parallelism: uint8(threads),
			SaltLength:  uint32(len(salt)),
			KeyLength:   uint32(keyLen),
		},
		salt: salt,
		key:  key,
	}, nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
}

// Compile-time interface check.
var _ SecretHasher = (*Argon2idHasher)(nil)

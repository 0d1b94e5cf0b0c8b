package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = 19 // argon2.Version is 0x13 (19)

// ErrInvalidHash is returned for malformed or unsupported encoded hashes.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// Argon2idParams controls hashing cost. MemoryKiB is in KiB as required by
// argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is a conservative baseline for a rarely-verified admin key.
func DefaultParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// IsEncodedHash reports whether s looks like an encoded Argon2id hash.
func IsEncodedHash(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "$argon2id$")
}

// Hash hashes a key using Argon2id and returns an encoded hash string.
// Format: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func Hash(key string, p Argon2idParams) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	derived := argon2.IDKey([]byte(key), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(derived),
	), nil
}

// Verify checks whether key matches the given encoded hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed/unsupported hashes.
func Verify(encodedHash, key string) (bool, error) {
	params, salt, expected, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	// Anti-DoS boundary: reject wildly larger settings than our own maximums
	// so attacker-controlled hash strings can't cause pathological work.
	if !withinReasonableBounds(params, DefaultParams()) {
		return false, ErrInvalidHash
	}

	derived := argon2.IDKey(
		[]byte(key),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)), // #nosec G115 -- expected length is bounded by decode(); safe conversion.
	)

	if subtle.ConstantTimeCompare(derived, expected) == 1 {
		return true, nil
	}
	return false, nil
}

func withinReasonableBounds(got Argon2idParams, limits Argon2idParams) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*4 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decode parses the encoded hash and returns params, salt and expected key.
func decode(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v=19" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par), // #nosec G115 -- bounded above.
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}
	return params, salt, hash, nil
}

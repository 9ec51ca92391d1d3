package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher is the pluggable password hashing policy. The argon2id
// implementation is the default; work factors are configuration, not
// call-site concerns.
type Hasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches the stored hash. It must run
	// the full key derivation and a constant-time comparison regardless of
	// input, so callers can keep timing uniform.
	Verify(hash, password string) bool
}

// Argon2Params are the argon2id work factors.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params match the values the schema was provisioned with.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher hashes passwords with argon2id and encodes them in PHC string
// format, so stored hashes carry their own parameters and remain verifiable
// after the configured factors change.
type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		params = DefaultArgon2Params()
	}
	if params.SaltLength == 0 {
		params.SaltLength = 16
	}
	if params.KeyLength == 0 {
		params.KeyLength = 32
	}
	return &Argon2Hasher{params: params}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

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

func (h *Argon2Hasher) Verify(hash, password string) bool {
	salt, key, params, err := decodeArgon2Hash(hash)
	if err != nil {
		// Still burn a derivation so a malformed stored hash does not
		// answer faster than a well-formed one.
		salt = make([]byte, h.params.SaltLength)
		key = make([]byte, h.params.KeyLength)
		params = h.params
	}
	derived := argon2.IDKey([]byte(password), salt,
		params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	ok := subtle.ConstantTimeCompare(derived, key) == 1
	return ok && err == nil
}

func decodeArgon2Hash(hash string) (salt, key []byte, params Argon2Params, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, params, errors.New("not an argon2id hash")
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, err
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, params, err
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, nil, params, errors.New("invalid argon2 parameters")
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, err
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, params, errors.New("invalid argon2 key")
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return salt, key, params, nil
}

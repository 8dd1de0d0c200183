// Package password hashes and verifies secrets with Argon2id. The same hasher
// protects user passwords and refresh tokens at rest.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Params are the Argon2id cost parameters. They are embedded in every hash,
// so changing them never invalidates hashes produced earlier.
type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns production-grade parameters.
func DefaultParams() Params {
	return Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case p.Time < minTime:
		return errors.New("argon2 time must be >= 1")
	case p.Parallelism < minParallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher produces and checks PHC-encoded Argon2id hashes:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	params Params
	rand   io.Reader
}

// NewHasher validates p and returns a Hasher using crypto/rand for salts.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p, rand: rand.Reader}, nil
}

// Hash returns a self-describing hash of plaintext with a fresh random salt,
// so two calls never return the same string.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches encoded. A wrong plaintext is
// (false, nil); only a malformed encoding returns an error wrapping
// common.ErrMalformedHash.
func (h *Hasher) Verify(encoded, plaintext string) (bool, error) {
	d, err := decode(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrMalformedHash, err)
	}

	key := argon2.IDKey([]byte(plaintext), d.salt, d.params.Time, d.params.Memory, d.params.Parallelism, uint32(len(d.key)))

	return subtle.ConstantTimeCompare(key, d.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	d, err := decode(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrMalformedHash, err)
	}
	p := d.params
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(d.key)) != h.params.KeyLength, nil
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (*decoded, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid version")
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported version %d", version)
	}

	d := &decoded{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Time, &d.params.Parallelism); err != nil {
		return nil, errors.New("invalid parameters")
	}
	if d.params.Memory < minMemoryKB || d.params.Time < minTime || d.params.Parallelism < minParallelism {
		return nil, errors.New("parameters out of range")
	}

	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || uint32(len(d.salt)) < minSaltLength {
		return nil, errors.New("invalid salt")
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || uint32(len(d.key)) < minKeyLength {
		return nil, errors.New("invalid hash")
	}

	return d, nil
}

// Package vault hashes and verifies account secrets.
//
// New secrets are bcrypt hashes. Hashes imported from the previous system use
// the pbkdf2_sha256$<iterations>$<salt>$<base64 digest> layout and are still
// accepted by Verify. Both formats carry a recognizable prefix, which is what
// StoreSecret relies on to avoid hashing an already hashed value twice.
package vault

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"structura/apperr"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const legacyPrefix = "pbkdf2_sha256$"

// MaxSecretBytes is the longest input bcrypt accepts.
const MaxSecretBytes = 72

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

var ErrEmptySecret = errors.New("empty secret")

type Vault struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

func New(cost int) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Vault{cost: cost}
}

var defaultVault = New(bcrypt.DefaultCost)

// SetDefaultCost replaces the process-wide vault. Call it before serving.
func SetDefaultCost(cost int) {
	defaultVault = New(cost)
}

func Default() *Vault { return defaultVault }

// IsHashed reports whether s is a well-formed hash in one of the known
// formats. A plaintext that merely starts with a marker is not a hash.
func IsHashed(s string) bool {
	if strings.HasPrefix(s, legacyPrefix) {
		_, _, _, ok := parseLegacy(s)
		return ok
	}
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(s, p) {
			_, err := bcrypt.Cost([]byte(s))
			return err == nil
		}
	}
	return false
}

func (v *Vault) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptySecret
	}
	if len(plaintext) > MaxSecretBytes {
		return "", tooLong()
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", tooLong()
	}
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(out), nil
}

// StoreSecret returns candidate unchanged when it is already hashed and
// hashes it otherwise.
func (v *Vault) StoreSecret(candidate string) (string, error) {
	if IsHashed(candidate) {
		return candidate, nil
	}
	return v.Hash(candidate)
}

// Verify recomputes the digest with the parameters embedded in stored.
func (v *Vault) Verify(candidate, stored string) bool {
	switch {
	case strings.HasPrefix(stored, legacyPrefix):
		return verifyLegacy(candidate, stored)
	case IsHashed(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	default:
		return false
	}
}

// BurnVerify spends the same work as a real comparison so that a lookup
// miss is not distinguishable by response time.
func (v *Vault) BurnVerify(candidate string) {
	v.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("structura-dummy"), v.cost)
		if err == nil {
			v.dummy = string(h)
		}
	})
	if v.dummy != "" {
		_ = bcrypt.CompareHashAndPassword([]byte(v.dummy), []byte(candidate))
	}
}

func tooLong() error {
	return apperr.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxSecretBytes))
}

// parseLegacy splits pbkdf2_sha256$<iterations>$<salt>$<digest>.
func parseLegacy(stored string) (iterations int, salt string, digest []byte, ok bool) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return 0, "", nil, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, "", nil, false
	}
	digest, err = base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) == 0 {
		return 0, "", nil, false
	}
	return iterations, parts[2], digest, true
}

func verifyLegacy(candidate, stored string) bool {
	iterations, salt, want, ok := parseLegacy(stored)
	if !ok {
		return false
	}
	got := pbkdf2.Key([]byte(candidate), []byte(salt), iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func Hash(plaintext string) (string, error)        { return defaultVault.Hash(plaintext) }
func StoreSecret(candidate string) (string, error) { return defaultVault.StoreSecret(candidate) }
func Verify(candidate, stored string) bool         { return defaultVault.Verify(candidate, stored) }
func BurnVerify(candidate string)                  { defaultVault.BurnVerify(candidate) }

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password schemes accepted by NewHasher
const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

const saltBytes = 16

// Hasher turns plaintext passwords into stored credentials and checks them.
// New credentials use the configured scheme; Verify accepts both formats so a
// store can move between schemes without locking anyone out.
type Hasher struct {
	scheme     string
	bcryptCost int
}

// NewHasher returns a hasher for the given scheme. An empty scheme means sha256.
func NewHasher(scheme string, bcryptCost int) (*Hasher, error) {
	switch scheme {
	case "", SchemeSHA256:
		scheme = SchemeSHA256
	case SchemeBcrypt:
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
	return &Hasher{scheme: scheme, bcryptCost: bcryptCost}, nil
}

// DefaultHasher is the salted sha256 hasher
func DefaultHasher() *Hasher {
	return &Hasher{scheme: SchemeSHA256}
}

// Scheme returns the scheme used for new credentials
func (h *Hasher) Scheme() string {
	return h.scheme
}

// Hash returns a storable credential for password
func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		return string(hashed), nil
	}

	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(b)
	return salt + ":" + digest(password, salt), nil
}

// Verify reports whether password matches credential. Malformed credentials never match.
func (h *Hasher) Verify(password, credential string) bool {
	if strings.HasPrefix(credential, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(credential), []byte(password)) == nil
	}

	salt, stored, ok := strings.Cut(credential, ":")
	if !ok || salt == "" || stored == "" {
		return false
	}
	computed := digest(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

func digest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

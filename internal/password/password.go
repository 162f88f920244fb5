// Package password hashes and verifies account credentials.
//
// Two formats are understood: the legacy unsalted SHA-256 hex digest and bcrypt.
// Bcrypt is fed the base64 SHA-256 of the password, so input of any length
// hashes; bcrypt alone rejects more than 72 bytes. Every hasher verifies both, so an accounts table written by an older build keeps
// working and can be upgraded one login at a time.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	NameSHA256 = "sha256"
	NameBcrypt = "bcrypt"
)

type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
	// NeedsRehash reports whether hash should be replaced by this hasher's format.
	NeedsRehash(hash string) bool
}

// New returns the hasher registered under name.
func New(name string) (Hasher, error) {
	switch name {
	case NameSHA256:
		return SHA256{}, nil
	case NameBcrypt, "":
		return Bcrypt{Cost: bcrypt.DefaultCost}, nil
	}

	return nil, fmt.Errorf("unknown password hasher %q", name)
}

// SHA256 is the deterministic hex digest. It cannot fail.
type SHA256 struct{}

func (SHA256) Hash(password string) (string, error) {
	return Digest(password), nil
}

func (SHA256) Verify(hash, password string) bool {
	return verify(hash, password)
}

func (SHA256) NeedsRehash(string) bool { return false }

// Digest returns the lowercase hex SHA-256 of password.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	out, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

func (Bcrypt) Verify(hash, password string) bool {
	return verify(hash, password)
}

func (Bcrypt) NeedsRehash(hash string) bool {
	return !IsBcrypt(hash)
}

func IsBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// bcryptInput is 44 bytes for any password, inside bcrypt's 72 byte limit.
func bcryptInput(password string) []byte {
	sum := sha256.Sum256([]byte(password))

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])

	return out
}

func verify(hash, password string) bool {
	if hash == "" {
		return false
	}

	if IsBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
	}

	want := Digest(password)

	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(want)) == 1
}

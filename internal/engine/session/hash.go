package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const saltSize = 16

// HashPassword returns a "salt:digest" hex string, the on-disk form
// spec §4.9's credential check expects in a user record.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("session.HashPassword: %w", err)
	}
	digest := digestWithSalt(salt, password)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest), nil
}

// VerifyPassword checks password against a "salt:digest" hash in
// constant time.
func VerifyPassword(hash, password string) bool {
	parts := strings.SplitN(hash, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got := digestWithSalt(salt, password)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func digestWithSalt(salt []byte, password string) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

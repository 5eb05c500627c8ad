package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
)

// hashPassword derives an HMAC-SHA512 digest of the password under a fresh
// 64-byte random key. The key doubles as the stored salt.
func hashPassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, 64)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return mac.Sum(nil), salt, nil
}

// verifyPassword recomputes the digest under the stored salt and compares in
// constant time.
func verifyPassword(password string, hash, salt []byte) bool {
	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return hmac.Equal(mac.Sum(nil), hash)
}

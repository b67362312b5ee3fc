package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptionFormat tags the wire format produced by Encrypt, mirroring the
// teacher's core.EncryptionFormat constant used alongside base64 as an
// alternative encLink format in the proxy link token.
const EncryptionFormat = "chacha20poly1305"

// deriveKey turns an arbitrary-length password into a fixed 32-byte AEAD key.
// This is a KDF-free derivation (a single SHA-256) because the password
// here is a per-user proxy secret generated and stored by the operator, not
// a low-entropy human password needing a slow hash.
func deriveKey(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

// Encrypt seals plaintext with a key derived from password and returns a
// base64 "nonce || ciphertext" string, for embedding in an opaque proxy
// link token the way the teacher embeds core.Encrypt's output.
func Encrypt(password, plaintext string) (string, error) {
	key := deriveKey(password)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

var ErrDecrypt = errors.New("decryption failed")

// Decrypt reverses Encrypt.
func Decrypt(password, encoded string) (string, error) {
	key := deriveKey(password)
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

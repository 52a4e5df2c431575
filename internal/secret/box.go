// Package secret seals session tokens before they are written to the
// database. A Box without a key stores tokens as given.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	prefix    = "sb1:"
	nonceSize = 24

	// argon2id parameters. Changing any of them makes existing rows unreadable.
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// kdfSalt is fixed so the same passphrase always yields the same key; there
// is nowhere to store a per-deployment salt before the database is opened.
var kdfSalt = []byte("checkin-nexus/secret/v1")

var ErrNoKey = errors.New("secret: token is encrypted but no key is configured")

type Box struct {
	key *[32]byte
}

// New derives the box key from passphrase. An empty passphrase disables
// encryption.
func New(passphrase string) *Box {
	if passphrase == "" {
		return &Box{}
	}
	key := deriveKey(passphrase)
	return &Box{key: &key}
}

func deriveKey(passphrase string) [32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), kdfSalt, kdfTime, kdfMemory, kdfThreads, uint32(len(key))))
	return key
}

func (b *Box) Enabled() bool {
	return b != nil && b.key != nil
}

// Seal encrypts plain into the stored form "sb1:<base64(nonce|box)>".
func (b *Box) Seal(plain string) (string, error) {
	if !b.Enabled() {
		return plain, nil
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("secret: failed to read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, b.key)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as is,
// so rows written before a key was configured keep working.
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, nil
	}
	if !b.Enabled() {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("secret: invalid encoding: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errors.New("secret: sealed value is too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", errors.New("secret: decryption failed (wrong key?)")
	}
	return string(plain), nil
}

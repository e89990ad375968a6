package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// KeyringVerifier accepts an API key whose bcrypt hash is registered for
// the principal.
type KeyringVerifier struct {
	hashes map[Principal][]byte
}

// keyringFile is the on-disk YAML layout:
//
//	principals:
//	  adjuster-7: "$2a$10$..."
type keyringFile struct {
	Principals map[string]string `yaml:"principals"`
}

// NewKeyringVerifier builds a verifier from principal -> bcrypt hash.
func NewKeyringVerifier(hashes map[Principal]string) *KeyringVerifier {
	k := &KeyringVerifier{hashes: make(map[Principal][]byte, len(hashes))}
	for p, h := range hashes {
		k.hashes[p] = []byte(h)
	}
	return k
}

// LoadKeyring reads a YAML keyring file. Unknown fields are rejected.
func LoadKeyring(path string) (*KeyringVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	var file keyringFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse keyring: %w", err)
	}

	hashes := make(map[Principal]string, len(file.Principals))
	for p, h := range file.Principals {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("keyring entry %q: not a bcrypt hash: %w", p, err)
		}
		hashes[Principal(p)] = h
	}
	return NewKeyringVerifier(hashes), nil
}

// Verify implements Verifier.
func (k *KeyringVerifier) Verify(ctx context.Context, principal Principal) error {
	if principal == "" {
		return unauthorized("empty principal")
	}
	creds, ok := CredentialsFrom(ctx)
	if !ok || creds.APIKey == "" {
		return unauthorized("missing api key")
	}
	hash, known := k.hashes[principal]
	if !known {
		return unauthorized("unknown principal %q", principal)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.APIKey)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return unauthorized("api key does not match principal %q", principal)
		}
		return unauthorized("api key check: %v", err)
	}
	return nil
}

// HashKey returns the bcrypt hash to store in a keyring for key.
func HashKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(h), nil
}

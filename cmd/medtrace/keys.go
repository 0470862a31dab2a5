package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")

	keyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// keyring stores named ed25519 keypairs as base58 encoded private keys, one
// file per key.
type keyring struct {
	dir string
}

func newKeyring(dataDir string) *keyring {
	return &keyring{dir: filepath.Join(dataDir, "keys")}
}

// Generate creates and stores a new keypair under name
func (k *keyring) Generate(name string) (ed25519.PrivateKey, error) {
	path, err := k.path(name)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create key directory")
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if os.IsExist(err) {
		return nil, errors.Wrapf(ErrKeyExists, "key %s", name)
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to create key file")
	}
	defer f.Close()

	if _, err := f.WriteString(base58.Encode(key) + "\n"); err != nil {
		return nil, errors.Wrap(err, "failed to write key file")
	}
	return key, nil
}

// Load returns the private key stored under name
func (k *keyring) Load(name string) (ed25519.PrivateKey, error) {
	path, err := k.path(name)
	if err != nil {
		return nil, err
	}

	encoded, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %s", name)
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read key file")
	}

	decoded, err := base58.Decode(strings.TrimSpace(string(encoded)))
	if err != nil || len(decoded) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("key file %s is not a base58 ed25519 private key", path)
	}
	return ed25519.PrivateKey(decoded), nil
}

// Resolve returns the public key for a key name, or decodes value as a base58
// address when no such key exists.
func (k *keyring) Resolve(value string) (ed25519.PublicKey, error) {
	if keyNamePattern.MatchString(value) {
		key, err := k.Load(value)
		if err == nil {
			return key.Public().(ed25519.PublicKey), nil
		} else if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
	}

	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("%q is neither a key name nor a base58 address", value)
	}
	return ed25519.PublicKey(decoded), nil
}

func (k *keyring) path(name string) (string, error) {
	if !keyNamePattern.MatchString(name) {
		return "", errors.Errorf("invalid key name %q", name)
	}
	return filepath.Join(k.dir, name+".key"), nil
}

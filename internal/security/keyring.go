package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "guildbot"
	vaultFile      = "vault.enc"

	// Placeholder is the config value that defers a secret to the KeyStore.
	Placeholder = "[keyring]"
)

// KeyStore stores bot secrets (tokens, API keys).
// Primary: OS keychain. Fallback: passphrase-encrypted file.
type KeyStore struct {
	passphrase string
	vaultPath  string
}

// NewKeyStore creates a key store whose vault lives in dir. An empty
// passphrase disables the vault fallback.
func NewKeyStore(dir, passphrase string) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &KeyStore{
		passphrase: passphrase,
		vaultPath:  filepath.Join(dir, vaultFile),
	}, nil
}

// Set stores a secret (tries keyring first, falls back to the vault).
func (ks *KeyStore) Set(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err == nil {
		return nil
	}
	return ks.setInVault(name, value)
}

// Get retrieves a secret.
func (ks *KeyStore) Get(name string) (string, error) {
	if val, err := keyring.Get(keyringService, name); err == nil {
		return val, nil
	}
	return ks.getFromVault(name)
}

// Delete removes a secret from both backends.
func (ks *KeyStore) Delete(name string) error {
	_ = keyring.Delete(keyringService, name)
	return ks.deleteFromVault(name)
}

// Resolve returns value unchanged unless it is Placeholder, in which case
// the secret stored under name is returned.
func (ks *KeyStore) Resolve(name, value string) (string, error) {
	if value != Placeholder {
		return value, nil
	}
	secret, err := ks.Get(name)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", name, err)
	}
	return secret, nil
}

// MaskKey returns a masked version of a secret for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

var errNoPassphrase = errors.New("vault passphrase not set")

func (ks *KeyStore) loadVault() (map[string]string, error) {
	data, err := os.ReadFile(ks.vaultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	if ks.passphrase == "" {
		return nil, errNoPassphrase
	}

	plaintext, err := openVault(string(data), ks.passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}

	var vault map[string]string
	if err := json.Unmarshal(plaintext, &vault); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	return vault, nil
}

func (ks *KeyStore) saveVault(vault map[string]string) error {
	if ks.passphrase == "" {
		return errNoPassphrase
	}
	data, err := json.Marshal(vault)
	if err != nil {
		return err
	}
	sealed, err := sealVault(data, ks.passphrase)
	if err != nil {
		return err
	}
	return os.WriteFile(ks.vaultPath, []byte(sealed), 0o600)
}

func (ks *KeyStore) setInVault(name, value string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return err
	}
	vault[name] = value
	return ks.saveVault(vault)
}

func (ks *KeyStore) getFromVault(name string) (string, error) {
	vault, err := ks.loadVault()
	if err != nil {
		return "", err
	}
	val, ok := vault[name]
	if !ok {
		return "", fmt.Errorf("key not found: %s", name)
	}
	return val, nil
}

func (ks *KeyStore) deleteFromVault(name string) error {
	vault, err := ks.loadVault()
	if err != nil {
		return nil
	}
	if _, ok := vault[name]; !ok {
		return nil
	}
	delete(vault, name)
	return ks.saveVault(vault)
}

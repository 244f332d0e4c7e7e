package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyringService   = "flakecast"
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32
)

// ErrNotFound is returned when no credential is stored under a name.
var ErrNotFound = errors.New("credential not found")

// CredentialManager stores warehouse passwords in the OS keyring, or in
// AES-GCM encrypted files when no keyring is available.
type CredentialManager struct {
	useKeyring bool
	dir        string
	masterKey  []byte
}

// Credential represents a stored credential
type Credential struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Encrypted bool              `json:"encrypted"`
}

// CredentialOptions configures where credentials live.
type CredentialOptions struct {
	// Dir holds the encrypted fallback files. Defaults to ~/.flakecast/credentials.
	Dir string
	// DisableKeyring forces the encrypted file store.
	DisableKeyring bool
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(opts CredentialOptions) (*CredentialManager, error) {
	if opts.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		opts.Dir = filepath.Join(home, ".flakecast", "credentials")
	}

	cm := &CredentialManager{
		useKeyring: !opts.DisableKeyring && isKeyringAvailable(),
		dir:        opts.Dir,
	}

	if !cm.useKeyring {
		key, err := cm.getMasterKey()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize master key: %w", err)
		}
		cm.masterKey = key
	}

	return cm, nil
}

// PasswordName is the credential name a warehouse login is stored under.
func PasswordName(account, user string) string {
	return fmt.Sprintf("snowflake:%s:%s", strings.ToLower(account), strings.ToLower(user))
}

// StorePassword saves the password for an account/user pair.
func (cm *CredentialManager) StorePassword(account, user, password string) error {
	return cm.StoreCredential(PasswordName(account, user), "password", password, map[string]string{
		"account": account,
		"user":    user,
	})
}

// Password looks up the stored password for an account/user pair.
func (cm *CredentialManager) Password(account, user string) (string, error) {
	cred, err := cm.GetCredential(PasswordName(account, user))
	if err != nil {
		return "", err
	}
	return cred.Value, nil
}

// DeletePassword removes the stored password for an account/user pair.
func (cm *CredentialManager) DeletePassword(account, user string) error {
	return cm.DeleteCredential(PasswordName(account, user))
}

// StoreCredential securely stores a credential
func (cm *CredentialManager) StoreCredential(name, credType, value string, metadata map[string]string) error {
	cred := Credential{
		Name:     name,
		Type:     credType,
		Value:    value,
		Metadata: metadata,
	}

	if cm.useKeyring {
		data, err := json.Marshal(cred)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		if err := keyring.Set(keyringService, name, string(data)); err != nil {
			return fmt.Errorf("failed to store in keyring: %w", err)
		}
		return nil
	}

	encrypted, err := cm.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	cred.Value = encrypted
	cred.Encrypted = true
	return cm.saveCredentialFile(name, &cred)
}

// GetCredential retrieves a stored credential
func (cm *CredentialManager) GetCredential(name string) (*Credential, error) {
	if cm.useKeyring {
		data, err := keyring.Get(keyringService, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get from keyring: %w", err)
		}

		var cred Credential
		if err := json.Unmarshal([]byte(data), &cred); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
		}
		return &cred, nil
	}

	cred, err := cm.loadCredentialFile(name)
	if err != nil {
		return nil, err
	}
	if cred.Encrypted {
		decrypted, err := cm.decrypt(cred.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credential: %w", err)
		}
		cred.Value = decrypted
		cred.Encrypted = false
	}
	return cred, nil
}

// DeleteCredential removes a stored credential
func (cm *CredentialManager) DeleteCredential(name string) error {
	if cm.useKeyring {
		err := keyring.Delete(keyringService, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	path, err := cm.credentialPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UsesKeyring reports whether the OS keyring backs this manager.
func (cm *CredentialManager) UsesKeyring() bool {
	return cm.useKeyring
}

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// getMasterKey loads the salt+key file, creating it on first use. The key is
// derived from machine-specific data so the file alone is not portable.
func (cm *CredentialManager) getMasterKey() ([]byte, error) {
	keyPath := filepath.Join(cm.dir, ".master")

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed name under the credentials dir
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(getMachineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cm.dir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), 0600); err != nil {
		return nil, err
	}

	return key, nil
}

// credentialPath maps a credential name to a file inside the credentials dir.
func (cm *CredentialManager) credentialPath(name string) (string, error) {
	safe := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(name)
	path := filepath.Join(cm.dir, safe+".cred")
	if filepath.Dir(path) != filepath.Clean(cm.dir) {
		return "", fmt.Errorf("invalid credential name %q", name)
	}
	return path, nil
}

func (cm *CredentialManager) saveCredentialFile(name string, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.dir, 0700); err != nil {
		return err
	}

	path, err := cm.credentialPath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (cm *CredentialManager) loadCredentialFile(name string) (*Credential, error) {
	path, err := cm.credentialPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is confined to the credentials dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}

	return &cred, nil
}

func isKeyringAvailable() bool {
	if os.Getenv("FLAKECAST_USE_KEYRING") == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" ||
			os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
			return true
		}
	}
	return false
}

func getMachineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}

package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
)

// Value is the stack-only decrypted material a backend's connect(cred, db)
// call consumes. Callers should overwrite it with Wipe as soon as the
// connection is established.
type Value struct {
	Username  string
	Password  string
	ClientSSL []byte
	Socket    string
	Host      string
	Port      int
	URI       string
}

// Wipe zeroes every field of v in place, so a deferred call leaves no
// plaintext secret material reachable through the Value after use.
func (v *Value) Wipe() {
	v.Username = ""
	v.Password = ""
	for i := range v.ClientSSL {
		v.ClientSSL[i] = 0
	}
	v.ClientSSL = nil
	v.Socket = ""
	v.Host = ""
	v.Port = 0
	v.URI = ""
}

// Manager encrypts and decrypts Values at rest with AES-256-GCM, the same
// construction the teacher's secrets manager uses for workload secrets.
type Manager struct {
	key []byte
}

// NewManager builds a Manager from a 32-byte AES-256 key.
func NewManager(key []byte) (*Manager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credential: encryption key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &Manager{key: key}, nil
}

// NewManagerFromPassphrase derives a key from a passphrase via SHA-256, for
// deployments that configure a single shared secret instead of managing raw
// key material.
func NewManagerFromPassphrase(passphrase string) (*Manager, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("credential: passphrase cannot be empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return NewManager(sum[:])
}

// Handle is an opaque, at-rest encrypted Value. It is safe to store in
// configuration or a catalog entry; only Retrieve exposes the plaintext.
type Handle struct {
	ciphertext []byte
}

// Seal encrypts v into a Handle. The caller should Wipe v once sealed if it
// no longer needs the plaintext.
func (m *Manager) Seal(v Value) (*Handle, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("credential: marshaling value: %w", err)
	}

	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("credential: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential: creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("credential: generating nonce: %w", err)
	}
	return &Handle{ciphertext: gcm.Seal(nonce, nonce, plaintext, nil)}, nil
}

// Retrieve decrypts h back into a Value.
func (m *Manager) Retrieve(h *Handle) (Value, error) {
	if h == nil {
		return Value{}, fmt.Errorf("credential: handle is nil")
	}
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return Value{}, fmt.Errorf("credential: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Value{}, fmt.Errorf("credential: creating GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(h.ciphertext) < nonceSize {
		return Value{}, fmt.Errorf("credential: ciphertext too short")
	}
	nonce, ct := h.ciphertext[:nonceSize], h.ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return Value{}, fmt.Errorf("credential: decrypting: %w", err)
	}

	var v Value
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return Value{}, fmt.Errorf("credential: unmarshaling value: %w", err)
	}
	return v, nil
}

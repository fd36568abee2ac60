package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
)

// FormState holds the explorer widget values that survive between requests
type FormState struct {
	DatasetID  string `json:"datasetId,omitempty"`
	SnapshotID string `json:"snapshotId,omitempty"`
}

// StateService seals form state into an opaque cookie value
type StateService struct {
	encryptionKey []byte
}

// NewStateService uses key when it is exactly 32 bytes and otherwise generates
// an ephemeral one, so state is dropped on restart.
func NewStateService(key string) *StateService {
	if len(key) != 32 {
		newKey := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, newKey); err != nil {
			panic("failed to generate random key")
		}
		return &StateService{encryptionKey: newKey}
	}
	return &StateService{encryptionKey: []byte(key)}
}

// Seal serializes and encrypts the form state
func (s *StateService) Seal(state FormState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Open decodes a sealed cookie value back into FormState
func (s *StateService) Open(sealed string) (*FormState, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}

	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("malformed ciphertext")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	var state FormState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateService) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

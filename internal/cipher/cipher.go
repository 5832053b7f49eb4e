// Package cipher encrypts card tokens at rest and derives the non-secret card
// helpers (mask, fingerprint) stored alongside them.
package cipher

import (
	gocipher "crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of the master key in bytes.
const KeySize = 32

const tokenVersion = "v1."

var (
	ErrDecryption = errors.New("decryption failed")
	ErrInvalidKey = errors.New("invalid encryption key")
)

var encoding = base64.RawURLEncoding

// Service holds the derived keys. It is immutable after New and safe for
// concurrent use.
type Service struct {
	aead           gocipher.AEAD
	fingerprintKey []byte
}

// New derives the encryption and fingerprint sub-keys from a 256-bit master key.
func New(masterKey []byte) (*Service, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(masterKey))
	}

	encKey, err := deriveKey(masterKey, "payzenix card token encryption")
	if err != nil {
		return nil, err
	}
	fpKey, err := deriveKey(masterKey, "payzenix card fingerprint")
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise aead: %w", err)
	}
	return &Service{aead: aead, fingerprintKey: fpKey}, nil
}

// ParseKey decodes a base64 master key as produced by GenerateKey.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrInvalidKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random master key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to read random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func deriveKey(master []byte, info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random nonce. The nonce travels in the
// token, so two encryptions of the same value never match.
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(tokenVersion))
	return tokenVersion + encoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any tampering or malformed input
// yields ErrDecryption and no plaintext.
func (s *Service) Decrypt(token string) (string, error) {
	body, ok := strings.CutPrefix(token, tokenVersion)
	if !ok {
		return "", fmt.Errorf("%w: unknown token version", ErrDecryption)
	}
	sealed, err := encoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: malformed token", ErrDecryption)
	}
	if len(sealed) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", fmt.Errorf("%w: token too short", ErrDecryption)
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(tokenVersion))
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	return string(plaintext), nil
}

// Fingerprint is a keyed, deterministic digest of a card number. It lets the
// fraud scorer recognise a card it has seen without comparing ciphertexts.
func (s *Service) Fingerprint(cardNumber string) string {
	mac := hmac.New(sha256.New, s.fingerprintKey)
	mac.Write([]byte(digitsOnly(cardNumber)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) String() string {
	return "cipher.Service{[redacted]}"
}

func (s *Service) GoString() string {
	return s.String()
}

// LogValue keeps key material out of structured logs.
func (s *Service) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// CardToken is the plaintext layout of an encrypted card token.
func CardToken(cardNumber, expiry string) string {
	return cardNumber + "|" + expiry
}

// SplitCardToken reverses CardToken.
func SplitCardToken(token string) (cardNumber, expiry string, err error) {
	cardNumber, expiry, ok := strings.Cut(token, "|")
	if !ok {
		return "", "", fmt.Errorf("%w: unexpected token layout", ErrDecryption)
	}
	return cardNumber, expiry, nil
}

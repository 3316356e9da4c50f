// crypto — симметричное шифрование полей, требующих обратимой
// конфиденциальности (OTP-записи в Redis и т.п.).
//
// Схема: AES-256-GCM, случайный nonce на каждый вызов, nonce префиксом
// в шифртексте. Ключ — серверный секрет из конфигурации (ровно 32 байта).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKeySize — ключ не равен 32 байтам (AES-256).
	ErrInvalidKeySize = errors.New("cipher key must be exactly 32 bytes")
	// ErrMalformedCiphertext — шифртекст короче nonce или не проходит аутентификацию.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Cipher — обратимый шифратор. Безопасен для конкурентного использования.
type Cipher struct {
	aead cipher.AEAD
}

// New создаёт Cipher из 32-байтного ключа.
func New(key []byte) (*Cipher, error) {
	const op = "pkg/crypto/New"

	if len(key) != 32 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt шифрует plaintext; возвращает nonce||ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	const op = "pkg/crypto/Encrypt"

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt расшифровывает nonce||ciphertext.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	const op = "pkg/crypto/Decrypt"

	if len(data) < c.aead.NonceSize() {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}

	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}

	return plaintext, nil
}

package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count used for newly created blobs.
	Iterations = 100_000

	saltSize = 16
	keySize  = 32
)

var (
	ErrDecrypt       = fmt.Errorf("unable to decrypt data")
	ErrMissingSecret = fmt.Errorf("missing secret to encrypt")
)

// EncryptedBlob is the persisted form of a secret: a fresh random salt and
// IV, the AES-256-CBC ciphertext and the PBKDF2 iteration count used to
// derive the key from the password.
type EncryptedBlob struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
	Iterations int
}

// String renders the blob in the storage format "salt:iv:ciphertext", hex
// encoded.
func (b *EncryptedBlob) String() string {
	return fmt.Sprintf(
		"%s:%s:%s",
		hex.EncodeToString(b.Salt),
		hex.EncodeToString(b.IV),
		hex.EncodeToString(b.Ciphertext),
	)
}

// ParseBlob parses the "salt:iv:ciphertext" storage format. Blobs serialized
// this way don't carry the iteration count, it defaults to the current
// constant.
func ParseBlob(s string) (*EncryptedBlob, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, ErrDecrypt
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, ErrDecrypt
	}
	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrDecrypt
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(salt) < saltSize || len(iv) != aes.BlockSize || len(ciphertext) == 0 {
		return nil, ErrDecrypt
	}
	return &EncryptedBlob{salt, iv, ciphertext, Iterations}, nil
}

// Encrypt derives a 256-bit key from the password with PBKDF2-SHA512 and a
// fresh random salt, then encrypts the secret with AES-256-CBC and a fresh
// random IV. Salt and IV are never reused, so encrypting the same secret
// twice yields different blobs.
func Encrypt(secret []byte, password string) (*EncryptedBlob, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	key := DeriveKey(password, salt, Iterations)
	defer Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := pad(secret)
	defer Zero(plaintext)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return &EncryptedBlob{salt, iv, ciphertext, Iterations}, nil
}

// Decrypt reverses Encrypt with the given password. Any failure, whether a
// wrong password, corrupted ciphertext or bad format, is reported as the
// generic ErrDecrypt.
func Decrypt(blob *EncryptedBlob, password string) ([]byte, error) {
	if blob == nil || len(blob.Salt) < saltSize ||
		len(blob.IV) != aes.BlockSize ||
		len(blob.Ciphertext) == 0 || len(blob.Ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}

	iterations := blob.Iterations
	if iterations <= 0 {
		iterations = Iterations
	}
	key := DeriveKey(password, blob.Salt, iterations)
	defer Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecrypt
	}

	plaintext := make([]byte, len(blob.Ciphertext))
	cipher.NewCBCDecrypter(block, blob.IV).CryptBlocks(plaintext, blob.Ciphertext)

	secret, err := unpad(plaintext)
	if err != nil {
		return nil, ErrDecrypt
	}
	return secret, nil
}

// DeriveKey runs PBKDF2-SHA512 over the password and salt, producing a
// 256-bit key.
func DeriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha512.New)
}

// Zero wipes the given buffer. Callers use it to drop key material and
// plaintext secrets as soon as they are no longer needed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pad(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, ErrDecrypt
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrDecrypt
		}
	}
	return data[:len(data)-padLen], nil
}

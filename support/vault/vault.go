// Package vault implements the per-user envelope encryption scheme for
// cloud credentials.
//
// Each user owns a 2048-bit RSA keypair created at registration. The
// public key encrypts credential fields freely; the private key is
// wrapped under a master key derived from the user's password with
// Argon2id. The derived key never touches the database: it travels in
// the enc_key session cookie and is re-derived at every login.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/ssh"
)

const (
	// Argon2id parameters for the master key derivation.
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	keyLen       = 32

	saltLen    = 16
	rsaKeySize = 2048
)

var (
	// ErrInvalidEncryptionKey indicates the supplied master key is not
	// usable (wrong length or not decodable).
	ErrInvalidEncryptionKey = errors.New("invalid encryption key")
	// ErrAuthenticationFailure indicates the master key did not unwrap
	// the private key, i.e. it was derived from the wrong password.
	ErrAuthenticationFailure = errors.New("authentication failure unwrapping private key")
)

// DeriveMasterKey derives the 32-byte master key from a password with
// Argon2id. A nil salt requests a fresh random 16-byte salt; the salt
// actually used is always returned so it can be persisted.
func DeriveMasterKey(password string, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("generating key salt: %w", err)
		}
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyLen)
	return key, salt, nil
}

// GenerateRSAKeyPair creates a user keypair and returns both halves as
// base64-encoded PEM, the storage format of the users table.
func GenerateRSAKeyPair() (privateB64, publicB64 string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeySize)
	if err != nil {
		return "", "", fmt.Errorf("generating RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshalling private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshalling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return base64.StdEncoding.EncodeToString(privPEM), base64.StdEncoding.EncodeToString(pubPEM), nil
}

// GenerateSSHKeyPair creates the ed25519 keypair baked into a deployed
// range's jumpbox. Returns the OpenSSH private key PEM and the
// authorized_keys form of the public key.
func GenerateSSHKeyPair(comment string) (privatePEM, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return "", "", fmt.Errorf("marshalling ssh private key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("building ssh public key: %w", err)
	}

	return string(pem.EncodeToMemory(block)), string(ssh.MarshalAuthorizedKey(sshPub)), nil
}

// EncryptPrivateKey wraps the base64 PEM private key under the master
// key with AES-256-GCM. The nonce is prepended to the ciphertext.
func EncryptPrivateKey(privateB64 string, masterKey []byte) (string, error) {
	if len(masterKey) != keyLen {
		return "", ErrInvalidEncryptionKey
	}
	plaintext, err := base64.StdEncoding.DecodeString(privateB64)
	if err != nil {
		return "", fmt.Errorf("decoding private key: %w", err)
	}

	aead, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPrivateKey unwraps the private key. A failed GCM open means
// the master key is wrong and maps to ErrAuthenticationFailure.
func DecryptPrivateKey(encryptedB64 string, masterKey []byte) (string, error) {
	if len(masterKey) != keyLen {
		return "", ErrInvalidEncryptionKey
	}
	sealed, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return "", fmt.Errorf("decoding wrapped private key: %w", err)
	}

	aead, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrAuthenticationFailure
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrAuthenticationFailure
	}
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

// EncryptWithPublicKey envelope-encrypts every non-empty value of data
// with the user's public key (RSA-OAEP SHA-256). Empty values stay
// empty so optional credential fields survive round trips.
func EncryptWithPublicKey(data map[string]string, publicB64 string) (map[string]string, error) {
	pub, err := parsePublicKey(publicB64)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(data))
	for field, value := range data {
		if value == "" {
			out[field] = ""
			continue
		}
		ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(value), nil)
		if err != nil {
			return nil, fmt.Errorf("encrypting field %q: %w", field, err)
		}
		out[field] = base64.StdEncoding.EncodeToString(ciphertext)
	}
	return out, nil
}

// DecryptWithPrivateKey reverses EncryptWithPublicKey given the
// unwrapped private key.
func DecryptWithPrivateKey(data map[string]string, privateB64 string) (map[string]string, error) {
	priv, err := parsePrivateKey(privateB64)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(data))
	for field, value := range data {
		if value == "" {
			out[field] = ""
			continue
		}
		ciphertext, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", field, err)
		}
		plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypting field %q: %w", field, err)
		}
		out[field] = string(plaintext)
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("building AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building GCM: %w", err)
	}
	return aead, nil
}

func parsePublicKey(publicB64 string) (*rsa.PublicKey, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(publicB64)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("public key is not PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaKey, nil
}

func parsePrivateKey(privateB64 string) (*rsa.PrivateKey, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(privateB64)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("private key is not PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

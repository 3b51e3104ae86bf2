package enclaveapi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash"
)

// HashAlgorithm specifies which hash function to use in RSA-OAEP
type HashAlgorithm string

const (
	// HashAlgorithmSHA256 uses SHA-256 (recommended, default)
	HashAlgorithmSHA256 HashAlgorithm = "SHA-256"
	// HashAlgorithmSHA1 uses SHA-1 (legacy support for client compatibility)
	HashAlgorithmSHA1 HashAlgorithm = "SHA-1"
)

// SealedAmount is a bid amount encrypted with RSA-OAEP/AES-256-GCM to the
// enclave's public key, so that only the enclave ever sees it.
type SealedAmount struct {
	AESKeyEncrypted  string        `json:"aes_key_encrypted"` // base64-encoded RSA-OAEP encrypted AES key
	EncryptedPayload string        `json:"encrypted_payload"` // base64-encoded AES-GCM encrypted {"amount": N}
	Nonce            string        `json:"nonce"`             // base64-encoded GCM nonce (12 bytes)
	HashAlgorithm    HashAlgorithm `json:"hash_algorithm,omitempty"`
}

type sealedPayload struct {
	Amount uint64 `json:"amount"`
}

// newHash creates the appropriate implementation of hash.Hash,
// or returns an error if the algorithm is unsupported.
func newHash(hashAlg HashAlgorithm) (hash.Hash, error) {
	switch hashAlg {
	case HashAlgorithmSHA256, "":
		return sha256.New(), nil
	case HashAlgorithmSHA1:
		return sha1.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", hashAlg)
	}
}

// SealAmount encrypts amount for the holder of publicKey. Bidders call this
// with the key from a verified key response.
func SealAmount(amount uint64, publicKey *rsa.PublicKey, hashAlg HashAlgorithm) (*SealedAmount, error) {
	hasher, err := newHash(hashAlg)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(sealedPayload{Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal amount: %w", err)
	}

	aesKey := make([]byte, 32)
	if _, err := rand.Read(aesKey); err != nil {
		return nil, fmt.Errorf("failed to generate AES key: %w", err)
	}

	aesgcm, err := newGCM(aesKey)
	if err != nil {
		return nil, err
	}

	nonceBytes := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := aesgcm.Seal(nil, nonceBytes, plaintext, nil)

	encryptedAESKey, err := rsa.EncryptOAEP(hasher, rand.Reader, publicKey, aesKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt AES key: %w", err)
	}

	return &SealedAmount{
		AESKeyEncrypted:  base64.StdEncoding.EncodeToString(encryptedAESKey),
		EncryptedPayload: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:            base64.StdEncoding.EncodeToString(nonceBytes),
		HashAlgorithm:    hashAlg,
	}, nil
}

// OpenAmount decrypts a sealed amount with the enclave's private key.
func OpenAmount(sealed *SealedAmount, privateKey *rsa.PrivateKey) (uint64, error) {
	if sealed == nil {
		return 0, fmt.Errorf("sealed amount is nil")
	}

	encryptedAESKey, err := base64.StdEncoding.DecodeString(sealed.AESKeyEncrypted)
	if err != nil {
		return 0, fmt.Errorf("failed to decode encrypted AES key: %w", err)
	}
	encryptedPayload, err := base64.StdEncoding.DecodeString(sealed.EncryptedPayload)
	if err != nil {
		return 0, fmt.Errorf("failed to decode encrypted payload: %w", err)
	}
	nonceBytes, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return 0, fmt.Errorf("failed to decode nonce: %w", err)
	}

	hasher, err := newHash(sealed.HashAlgorithm)
	if err != nil {
		return 0, err
	}

	aesKey, err := rsa.DecryptOAEP(hasher, rand.Reader, privateKey, encryptedAESKey, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt AES key: %w", err)
	}
	if len(aesKey) != 32 {
		return 0, fmt.Errorf("invalid AES key length: expected 32 bytes, got %d", len(aesKey))
	}

	aesgcm, err := newGCM(aesKey)
	if err != nil {
		return 0, err
	}
	if len(nonceBytes) != aesgcm.NonceSize() {
		return 0, fmt.Errorf("invalid nonce length: expected %d bytes, got %d", aesgcm.NonceSize(), len(nonceBytes))
	}

	plaintext, err := aesgcm.Open(nil, nonceBytes, encryptedPayload, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	var payload sealedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse decrypted payload: %w", err)
	}
	return payload.Amount, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesgcm, nil
}

// PublicKeyPEM encodes an RSA public key as a PKIX PEM block.
func PublicKeyPEM(publicKey *rsa.PublicKey) (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}
	return string(pem.EncodeToMemory(pemBlock)), nil
}

// ParsePublicKeyPEM is the inverse of PublicKeyPEM.
func ParsePublicKeyPEM(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaKey, nil
}

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/cloudx-io/sealedbid/enclaveapi"
)

const sealingKeyBits = 2048

// SealingKey is the RSA key pair bidders seal amounts to. It is generated at
// startup and the private half never leaves the process, so a restart
// invalidates every amount sealed to the previous key.
type SealingKey struct {
	private *rsa.PrivateKey
	pem     string
}

func NewSealingKey() (*SealingKey, error) {
	private, err := rsa.GenerateKey(rand.Reader, sealingKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate %d-bit sealing key: %w", sealingKeyBits, err)
	}
	encoded, err := enclaveapi.PublicKeyPEM(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encode sealing key: %w", err)
	}
	return &SealingKey{private: private, pem: encoded}, nil
}

func (k *SealingKey) Public() *rsa.PublicKey { return &k.private.PublicKey }

// PEM returns the PKIX public key as published to bidders.
func (k *SealingKey) PEM() string { return k.pem }

// Algorithm names the key type in key attestations.
func (k *SealingKey) Algorithm() string {
	return fmt.Sprintf("RSA-%d", k.private.N.BitLen())
}

// KeyResponse publishes the public key together with an attestation that
// binds it to the running image.
func (k *SealingKey) KeyResponse(attester EnclaveAttester) (*enclaveapi.KeyResponse, error) {
	attestation, err := GenerateKeyAttestation(attester, k)
	if err != nil {
		return nil, err
	}
	return &enclaveapi.KeyResponse{
		Response:              enclaveapi.Response{Type: enclaveapi.TypeKeyResponse, Success: true},
		PublicKey:             k.pem,
		AttestationCOSEBase64: attestation.EncodeBase64(),
	}, nil
}

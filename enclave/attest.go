package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/log"
)

// EnclaveAttester produces NSM attestation documents. The real handle comes
// from the nitro SDK; tests substitute a self-signed mock.
type EnclaveAttester interface {
	Attest(options enclave.AttestationOptions) ([]byte, error)
}

var errNoAttester = errors.New("no enclave attester available")

// nonceBytes is the entropy behind every attestation and commit-hash nonce.
const nonceBytes = 32

// randomHex returns n random bytes hex encoded. Inside an enclave the kernel
// pool behind crypto/rand is seeded from the NSM.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read %d random bytes: %w", n, err)
	}
	return hex.EncodeToString(buf), nil
}

// attestJSON asks the NSM for a document carrying userData as JSON, with a
// fresh nonce so two documents over the same data never repeat.
func attestJSON(attester EnclaveAttester, userData any) (enclaveapi.AttestationCOSE, error) {
	if attester == nil {
		return nil, errNoAttester
	}
	payload, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("encode attestation user data: %w", err)
	}
	nonce, err := randomHex(nonceBytes)
	if err != nil {
		return nil, err
	}

	doc, err := attester.Attest(enclave.AttestationOptions{UserData: payload, Nonce: []byte(nonce)})
	if err != nil {
		log.Errorf("NSM attestation failed: %v", err)
		return nil, fmt.Errorf("nsm attest: %w", err)
	}
	return enclaveapi.AttestationCOSE(doc), nil
}

// GenerateKeyAttestation attests to the sealing public key.
func GenerateKeyAttestation(attester EnclaveAttester, key *SealingKey) (enclaveapi.AttestationCOSE, error) {
	doc, err := attestJSON(attester, &enclaveapi.KeyAttestationUserData{
		KeyAlgorithm: key.Algorithm(),
		PublicKey:    key.PEM(),
	})
	if err != nil {
		return nil, fmt.Errorf("key attestation: %w", err)
	}
	log.Debugf("Key attestation: %d bytes", len(doc))
	return doc, nil
}

// GenerateCommitAttestation attests to the amount a bid was released with.
// Only a salted hash of the amount goes into the document.
func GenerateCommitAttestation(attester EnclaveAttester, bidAddress core.Pubkey, bid core.SealedBid) (enclaveapi.AttestationCOSE, error) {
	salt, err := randomHex(nonceBytes)
	if err != nil {
		return nil, err
	}

	doc, err := attestJSON(attester, &enclaveapi.CommitAttestationUserData{
		Auction:    bid.Auction,
		Bidder:     bid.Bidder,
		BidAddress: bidAddress,
		CommitHash: core.ComputeCommitHash(bidAddress, bid.Amount, salt),
		HashNonce:  salt,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("commit attestation for %s: %w", bidAddress.Short(), err)
	}
	log.Infof("Commit attestation for %s: %d bytes", bidAddress.Short(), len(doc))
	return doc, nil
}

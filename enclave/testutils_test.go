package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/enclaveapi/parsing"
)

// MockEnclaveHandle stands in for the NSM device.
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	if m.AttestFunc == nil {
		return nil, errors.New("mock attester has no AttestFunc")
	}
	return m.AttestFunc(options)
}

// mockPCRs are the measurements every mock document reports.
var mockPCRs = map[uint64]string{
	0: "3b4cef27e672fdbcc808960a88ddfe7329dd2e367b6850c9a8d910315f0b47e4224d6db361b75e010c87691d86ca9c57",
	1: "4b4d5b3661b3efc12920900c80e126e4ce783c522de6c02a2a5bf7af3a2b9327b86776f188e4be1c1c404a129dbda493",
	2: "2bdd28c1d85bb3872da3617a29a6bfeb50c65750c995f92e7dac6b5f2c4c72e0f9976bdee62a0b25864d10dffb535e11",
}

// CreateMockEnclave returns an attester that wraps the requested user data in
// an unsigned COSE_Sign1 envelope shaped like a real NSM document.
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	pcrs := make(map[uint64][]byte, len(mockPCRs))
	for idx, value := range mockPCRs {
		raw, err := hex.DecodeString(value)
		if err != nil {
			t.Fatalf("mock PCR%d: %v", idx, err)
		}
		pcrs[idx] = raw
	}

	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			payload, err := cbor.Marshal(&parsing.NitroAttestationDocument{
				ModuleID:    "test-enclave-12345",
				Digest:      "SHA384",
				Timestamp:   uint64(time.Now().UnixMilli()),
				PCRs:        pcrs,
				Certificate: []byte("test-certificate-data"),
				CABundle:    [][]byte{[]byte("test-ca-cert")},
				UserData:    options.UserData,
				Nonce:       options.Nonce,
			})
			if err != nil {
				return nil, err
			}
			return cbor.Marshal(&parsing.Sign1{
				Protected:   []byte{0xa1, 0x01, 0x38, 0x22}, // {alg: ES384}
				Unprotected: cbor.RawMessage{0xa0},
				Payload:     payload,
				Signature:   make([]byte, 96),
			})
		},
	}
}

// parseCommitAttestationFromCOSE decodes a commit attestation and its user data.
func parseCommitAttestationFromCOSE(t *testing.T, coseBytes enclaveapi.AttestationCOSE) *enclaveapi.CommitAttestationDoc {
	t.Helper()

	attestationDoc, userDataBytes, err := coseBytes.ParseAttestationDoc()
	if err != nil {
		t.Fatalf("Failed to parse attestation: %v", err)
	}

	var userData enclaveapi.CommitAttestationUserData
	if err := json.Unmarshal(userDataBytes, &userData); err != nil {
		t.Fatalf("Failed to unmarshal user data: %v", err)
	}

	return &enclaveapi.CommitAttestationDoc{
		AttestationDoc: attestationDoc,
		UserData:       &userData,
	}
}

// newTestServer builds a server around a fresh key and the mock attester.
func newTestServer(t *testing.T) *EnclaveServer {
	t.Helper()
	key, err := NewSealingKey()
	if err != nil {
		t.Fatalf("NewSealingKey: %v", err)
	}
	server := NewEnclaveServer(Config{MaxWorkers: 4, ReadTimeout: 5 * time.Second}, key)
	mock := CreateMockEnclave(t)
	server.attester = func() (EnclaveAttester, error) { return mock, nil }
	return server
}

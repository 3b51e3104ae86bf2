package parsing

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NitroAttestationDocument is the CBOR payload of an NSM attestation.
type NitroAttestationDocument struct {
	ModuleID    string            `cbor:"module_id"`
	Digest      string            `cbor:"digest"`
	Timestamp   uint64            `cbor:"timestamp"` // milliseconds since epoch
	PCRs        map[uint64][]byte `cbor:"pcrs"`
	Certificate []byte            `cbor:"certificate"`
	CABundle    [][]byte          `cbor:"cabundle"`
	PublicKey   []byte            `cbor:"public_key"`
	UserData    []byte            `cbor:"user_data"`
	Nonce       []byte            `cbor:"nonce"`
}

// DecodeNitroPayload decodes the attestation document carried in a
// COSE_Sign1 payload.
func DecodeNitroPayload(payload []byte) (*NitroAttestationDocument, error) {
	var doc NitroAttestationDocument
	if err := cbor.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse attestation document: %w", err)
	}
	if doc.ModuleID == "" {
		return nil, fmt.Errorf("attestation document has no module_id")
	}
	return &doc, nil
}

// DecodeAttestationDocument decodes the envelope and its document in one go.
func DecodeAttestationDocument(coseBytes []byte) (*NitroAttestationDocument, error) {
	msg, err := DecodeSign1(coseBytes)
	if err != nil {
		return nil, err
	}
	return DecodeNitroPayload(msg.Payload)
}

// FormatPCR renders a PCR value as lowercase hex; absent registers are "".
func FormatPCR(pcrData []byte) string {
	return hex.EncodeToString(pcrData)
}

func EncodeCertificateBundle(bundle [][]byte) []string {
	result := make([]string, 0, len(bundle))
	for _, cert := range bundle {
		result = append(result, base64.StdEncoding.EncodeToString(cert))
	}
	return result
}

package parsing

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Sign1 is an untagged COSE_Sign1 message, the envelope the NSM wraps every
// attestation document in.
type Sign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected cbor.RawMessage
	Payload     []byte
	Signature   []byte
}

// DecodeSign1 decodes the four-element COSE_Sign1 array.
func DecodeSign1(raw []byte) (*Sign1, error) {
	var msg Sign1
	if err := cbor.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("COSE_Sign1 has no payload")
	}
	return &msg, nil
}

// SigStructure returns the bytes the signature covers. Attestation
// documents carry no external AAD.
func (m *Sign1) SigStructure() ([]byte, error) {
	tbs, err := cbor.Marshal([]any{"Signature1", m.Protected, []byte{}, m.Payload})
	if err != nil {
		return nil, fmt.Errorf("marshal Sig_structure: %w", err)
	}
	return tbs, nil
}

package validation

import (
	"strings"

	enclaveapi "github.com/cloudx-io/sealedbid/enclaveapi"
)

// ValidateKeyAttestation checks a key response: the attestation must come
// from a known enclave image and attest to expectedPublicKey (PEM, as in
// KeyResponse.PublicKey). The error is reserved for input that cannot be
// checked at all; failed checks are reported in the result.
func ValidateKeyAttestation(attestationCOSEBase64 enclaveapi.AttestationCOSEBase64, expectedPublicKey string, opts Options) (*KeyValidationResult, error) {
	att, err := decodeAttestation(attestationCOSEBase64)
	if err != nil {
		return nil, err
	}
	base, err := att.check(opts)
	if err != nil {
		return nil, err
	}
	result := &KeyValidationResult{BaseValidationResult: *base}

	var userData enclaveapi.KeyAttestationUserData
	present, err := att.userData(&userData)
	if err != nil {
		return nil, err
	}

	// PEM text may differ in trailing newlines only
	switch {
	case !present || userData.PublicKey == "":
		result.ValidationDetails = append(result.ValidationDetails, "Public key missing from attestation")
	case strings.TrimSpace(expectedPublicKey) == strings.TrimSpace(userData.PublicKey):
		result.PublicKeyMatch = true
		result.ValidationDetails = append(result.ValidationDetails, "Public key matches attestation")
	default:
		result.ValidationDetails = append(result.ValidationDetails, "Public key mismatch: provided key does not match attested key")
	}
	return result, nil
}

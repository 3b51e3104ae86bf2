package validation

import (
	"fmt"

	"github.com/cloudx-io/sealedbid/core"
	enclaveapi "github.com/cloudx-io/sealedbid/enclaveapi"
)

// CommitValidationInput identifies the released bid an attestation is
// expected to cover. Amount is the amount the bidder submitted.
type CommitValidationInput struct {
	Attestation enclaveapi.AttestationCOSEBase64
	Auction     core.Pubkey
	Bidder      core.Pubkey
	BidAddress  core.Pubkey
	Amount      uint64
}

// ValidateCommitAttestation verifies that a commit attestation came from a
// genuine enclave and that the enclave released the bid with the expected
// amount.
//
// Returns:
//   - CommitValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed input, missing config)
func ValidateCommitAttestation(input *CommitValidationInput, opts Options) (*CommitValidationResult, error) {
	att, err := decodeAttestation(input.Attestation)
	if err != nil {
		return nil, err
	}
	base, err := att.check(opts)
	if err != nil {
		return nil, err
	}
	result := &CommitValidationResult{BaseValidationResult: *base}

	var userData enclaveapi.CommitAttestationUserData
	present, err := att.userData(&userData)
	if err != nil {
		return nil, err
	}
	if !present {
		result.ValidationDetails = append(result.ValidationDetails, "Commit data missing from attestation")
		return result, nil
	}

	result.BindingValid = userData.Auction == input.Auction &&
		userData.Bidder == input.Bidder &&
		userData.BidAddress == input.BidAddress
	if result.BindingValid {
		result.ValidationDetails = append(result.ValidationDetails, "Attestation covers the expected bid account")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Binding mismatch: attestation covers bid %s of auction %s",
			userData.BidAddress, userData.Auction))
	}

	expectedHash := core.ComputeCommitHash(input.BidAddress, input.Amount, userData.HashNonce)
	result.CommitHashValid = expectedHash == userData.CommitHash
	if result.CommitHashValid {
		result.ValidationDetails = append(result.ValidationDetails, "Commit hash matches amount")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Commit hash mismatch: bid was not released with this amount")
	}

	return result, nil
}

package validation

import "crypto/x509"

// BaseValidationResult holds the checks every attestation goes through.
// ValidationDetails explains each failed check in order.
type BaseValidationResult struct {
	PCRsValid         bool
	CertificateValid  bool
	SignatureValid    bool
	ValidationDetails []string
}

type KeyValidationResult struct {
	BaseValidationResult
	PublicKeyMatch bool
}

func (r *KeyValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.PublicKeyMatch
}

// CommitValidationResult reports on the attestation of a released bid.
type CommitValidationResult struct {
	BaseValidationResult
	// BindingValid: the attestation names the expected auction, bidder and
	// bid account.
	BindingValid    bool
	CommitHashValid bool
}

// IsValid is true only when the commitment also matches the expected amount.
func (r *CommitValidationResult) IsValid() bool {
	return r.PCRsValid && r.CertificateValid && r.SignatureValid && r.BindingValid && r.CommitHashValid
}

// PCRSet is one enclave image accepted as genuine, identified by its first
// three measurements in lowercase hex.
type PCRSet struct {
	PCR0        string `json:"pcr0" validate:"required,hexadecimal"`
	PCR1        string `json:"pcr1" validate:"required,hexadecimal"`
	PCR2        string `json:"pcr2" validate:"required,hexadecimal"`
	BuildCommit string `json:"build_commit"` // sealedbid commit the image was built from
}

// PCRConfig is the layout of a known PCR sets file.
type PCRConfig struct {
	PCRSets []PCRSet `json:"pcr_sets" validate:"required,min=1,dive"`
}

// Options control what an attestation is checked against.
type Options struct {
	// KnownPCRs are the enclave images accepted as genuine.
	KnownPCRs []PCRSet
	// Roots replaces the AWS Nitro root CA when set.
	Roots *x509.CertPool
}

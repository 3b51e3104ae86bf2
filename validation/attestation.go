package validation

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"time"

	enclaveapi "github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/enclaveapi/parsing"
)

// attestation is a decoded document together with the envelope that signs
// it.
type attestation struct {
	msg  *parsing.Sign1
	doc  *parsing.NitroAttestationDocument
	cert *x509.Certificate
}

func decodeAttestation(b64 enclaveapi.AttestationCOSEBase64) (*attestation, error) {
	raw, err := b64.Decode()
	if err != nil {
		return nil, err
	}
	msg, err := parsing.DecodeSign1(raw)
	if err != nil {
		return nil, err
	}
	doc, err := parsing.DecodeNitroPayload(msg.Payload)
	if err != nil {
		return nil, err
	}
	a := &attestation{msg: msg, doc: doc}
	if len(doc.Certificate) > 0 {
		if a.cert, err = x509.ParseCertificate(doc.Certificate); err != nil {
			return nil, fmt.Errorf("parse signing certificate: %w", err)
		}
	}
	return a, nil
}

func (a *attestation) timestamp() time.Time {
	return time.UnixMilli(int64(a.doc.Timestamp)).UTC()
}

// userData decodes the JSON user data into v. It reports false when the
// document carries none.
func (a *attestation) userData(v any) (bool, error) {
	if len(a.doc.UserData) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(a.doc.UserData, v); err != nil {
		return false, fmt.Errorf("parse user data: %w", err)
	}
	return true, nil
}

// check runs the checks every attestation kind shares: known image, chain
// to the root at attestation time, and the envelope signature.
func (a *attestation) check(opts Options) (*BaseValidationResult, error) {
	if len(opts.KnownPCRs) == 0 {
		return nil, fmt.Errorf("no known PCR sets configured")
	}
	result := &BaseValidationResult{ValidationDetails: []string{}}
	note := func(format string, args ...any) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(format, args...))
	}

	if set, ok := MatchPCRs(a.doc.PCRs, opts.KnownPCRs); ok {
		result.PCRsValid = true
		note("PCR measurements valid (build %s)", set.BuildCommit)
	} else {
		for _, i := range []uint64{0, 1, 2} {
			note("PCR%d: %s (no match)", i, parsing.FormatPCR(a.doc.PCRs[i]))
		}
	}

	if a.cert == nil {
		note("Missing certificate")
		return result, nil
	}

	if err := VerifyCertificateChain(a.cert, a.doc.CABundle, a.timestamp(), opts.Roots); err != nil {
		note("Certificate chain validation failed: %v", err)
	} else {
		result.CertificateValid = true
		note("Certificate chain verified")
	}

	if err := VerifyCOSESignature(a.msg, a.cert); err != nil {
		note("COSE signature verification failed: %v", err)
	} else {
		result.SignatureValid = true
		note("COSE signature verified")
	}
	return result, nil
}

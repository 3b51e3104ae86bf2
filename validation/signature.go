package validation

import (
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/sealedbid/enclaveapi/parsing"
)

// VerifyCOSESignature checks the ES384 signature of msg against the public
// key of cert.
func VerifyCOSESignature(msg *parsing.Sign1, cert *x509.Certificate) error {
	key, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmES384, key)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	tbs, err := msg.SigStructure()
	if err != nil {
		return err
	}
	return verifier.Verify(tbs, msg.Signature)
}

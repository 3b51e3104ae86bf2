package validation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/veraison/go-cose"

	enclaveapi "github.com/cloudx-io/sealedbid/enclaveapi"
)

var testPCRs = map[uint64][]byte{
	0: {0x01, 0x02, 0x03},
	1: {0x04, 0x05, 0x06},
	2: {0x07, 0x08, 0x09},
}

var testPCRSet = PCRSet{PCR0: "010203", PCR1: "040506", PCR2: "070809", BuildCommit: "abc123"}

// testPKI is a throwaway root and signing certificate standing in for the
// Nitro certificate chain.
type testPKI struct {
	roots   *x509.CertPool
	rootDER []byte
	leafDER []byte
	leafKey *ecdsa.PrivateKey
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()
	now := time.Now()

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test.nitro-enclaves"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	assert.NoError(t, err)
	root, err := x509.ParseCertificate(rootDER)
	assert.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "i-test-enclave"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, root, &leafKey.PublicKey, rootKey)
	assert.NoError(t, err)

	roots := x509.NewCertPool()
	roots.AddCert(root)
	return &testPKI{roots: roots, rootDER: rootDER, leafDER: leafDER, leafKey: leafKey}
}

func (p *testPKI) options() Options {
	return Options{KnownPCRs: []PCRSet{testPCRSet}, Roots: p.roots}
}

// attest builds an ES384-signed, untagged COSE_Sign1 attestation the way the
// NSM lays it out.
func (p *testPKI) attest(t *testing.T, userData any, at time.Time) enclaveapi.AttestationCOSEBase64 {
	t.Helper()
	userDataBytes, err := json.Marshal(userData)
	assert.NoError(t, err)

	payload, err := cbor.Marshal(map[string]any{
		"module_id":   "i-test-enclave",
		"digest":      "SHA384",
		"timestamp":   uint64(at.UnixMilli()),
		"pcrs":        testPCRs,
		"certificate": p.leafDER,
		"cabundle":    [][]byte{p.rootDER},
		"user_data":   userDataBytes,
		"nonce":       []byte("nonce"),
	})
	assert.NoError(t, err)

	protected, err := cbor.Marshal(map[int]int{1: int(cose.AlgorithmES384)})
	assert.NoError(t, err)
	toBeSigned, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
	assert.NoError(t, err)

	signer, err := cose.NewSigner(cose.AlgorithmES384, p.leafKey)
	assert.NoError(t, err)
	signature, err := signer.Sign(rand.Reader, toBeSigned)
	assert.NoError(t, err)

	coseBytes, err := cbor.Marshal([]any{protected, map[int]any{}, payload, signature})
	assert.NoError(t, err)
	return enclaveapi.AttestationCOSE(coseBytes).EncodeBase64()
}

package enclaveapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/cloudx-io/sealedbid/enclaveapi/parsing"
)

// PCRs represents the Platform Configuration Registers from AWS Nitro Enclaves
type PCRs struct {
	// PCR0: Hash of the Enclave Image File (EIF)
	ImageFileHash string `json:"0"`

	// PCR1: Hash of the Linux kernel and initial RAM data (initramfs)
	KernelHash string `json:"1"`

	// PCR2: Hash of user applications, excluding the boot ramfs
	ApplicationHash string `json:"2"`

	// PCR3: Hash of the IAM role assigned to the parent instance
	IAMRoleHash string `json:"3"`

	// PCR4: Hash of the parent instance's ID
	InstanceIDHash string `json:"4"`

	// PCR8: Hash of the enclave image file's signing certificate
	SigningCertHash string `json:"8,omitempty"`
}

// AttestationDoc represents the base structured attestation data from AWS Nitro Enclaves
type AttestationDoc struct {
	ModuleID        string    `json:"module_id"`
	Timestamp       time.Time `json:"timestamp"`
	DigestAlgorithm string    `json:"digest"`
	PCRs            PCRs      `json:"pcrs"`
	// Certificate and CABundle are base64 DER.
	Certificate string   `json:"certificate"`
	CABundle    []string `json:"cabundle"`
	PublicKey   string   `json:"public_key"`
	Nonce       string   `json:"nonce"`
}

// AttestationCOSE is a raw COSE_Sign1 attestation as produced by the NSM.
type AttestationCOSE []byte

// AttestationCOSEBase64 is the standard base64 form used in JSON.
type AttestationCOSEBase64 string

// AttestationCOSEGzip is gzip-compressed, unpadded URL-safe base64. It is
// the compact form the gateway hands out in query strings.
type AttestationCOSEGzip string

// EncodeBase64 encodes raw COSE bytes for JSON transport.
func (a AttestationCOSE) EncodeBase64() AttestationCOSEBase64 {
	return AttestationCOSEBase64(base64.StdEncoding.EncodeToString(a))
}

// CompressGzip compresses the raw bytes. Output is deterministic for a given
// input.
func (a AttestationCOSE) CompressGzip() (AttestationCOSEGzip, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := zw.Write(a); err != nil {
		return "", fmt.Errorf("gzip attestation: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	return AttestationCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// ParseAttestationDoc extracts the Nitro attestation document from the COSE
// payload. The user data is returned raw; callers unmarshal it into the
// user data type they expect.
func (a AttestationCOSE) ParseAttestationDoc() (AttestationDoc, []byte, error) {
	raw, err := parsing.DecodeAttestationDocument(a)
	if err != nil {
		return AttestationDoc{}, nil, err
	}

	doc := AttestationDoc{
		ModuleID:        raw.ModuleID,
		Timestamp:       time.UnixMilli(int64(raw.Timestamp)).UTC(),
		DigestAlgorithm: raw.Digest,
		PCRs: PCRs{
			ImageFileHash:   parsing.FormatPCR(raw.PCRs[0]),
			KernelHash:      parsing.FormatPCR(raw.PCRs[1]),
			ApplicationHash: parsing.FormatPCR(raw.PCRs[2]),
			IAMRoleHash:     parsing.FormatPCR(raw.PCRs[3]),
			InstanceIDHash:  parsing.FormatPCR(raw.PCRs[4]),
			SigningCertHash: parsing.FormatPCR(raw.PCRs[8]),
		},
		Certificate: base64.StdEncoding.EncodeToString(raw.Certificate),
		CABundle:    parsing.EncodeCertificateBundle(raw.CABundle),
		PublicKey:   base64.StdEncoding.EncodeToString(raw.PublicKey),
		Nonce:       string(raw.Nonce),
	}
	return doc, raw.UserData, nil
}

func (s AttestationCOSEBase64) String() string {
	return string(s)
}

// Decode returns the raw COSE bytes.
func (s AttestationCOSEBase64) Decode() (AttestationCOSE, error) {
	if s == "" {
		return nil, fmt.Errorf("empty attestation")
	}
	raw, err := base64.StdEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64 attestation: %w", err)
	}
	return AttestationCOSE(raw), nil
}

func (s AttestationCOSEGzip) String() string {
	return string(s)
}

// Decompress returns the raw COSE bytes.
func (s AttestationCOSEGzip) Decompress() (AttestationCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode gzip attestation: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip attestation: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress attestation: %w", err)
	}
	return AttestationCOSE(raw), nil
}

package enclaveapi

import (
	"time"

	"github.com/cloudx-io/sealedbid/core"
)

// Request and response type tags. Every message on the wire is a JSON object
// whose "type" field selects one of these.
const (
	TypePing               = "ping"
	TypePong               = "pong"
	TypeError              = "error"
	TypeKeyRequest         = "key_request"
	TypeKeyResponse        = "key_response"
	TypeDelegateRequest    = "delegate_request"
	TypeDelegateResponse   = "delegate_response"
	TypeSubmitRequest      = "submit_request"
	TypeSubmitResponse     = "submit_response"
	TypeUndelegateRequest  = "undelegate_request"
	TypeUndelegateResponse = "undelegate_response"
	TypeForgetRequest      = "forget_request"
	TypeForgetResponse     = "forget_response"
)

// Response is the envelope shared by every reply. Code carries the auction
// error code when the enclave rejected the request by auction rules, so the
// host can surface the same error it would have produced itself.
type Response struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    uint32 `json:"code,omitempty"`
}

// Err converts a failed response into an error. Responses carrying an
// auction error code become *core.AuctionError.
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Code != 0 {
		return core.FromCode(core.ErrorCode(r.Code), r.Message)
	}
	return &RemoteError{Message: r.Message}
}

// RemoteError is an enclave failure unrelated to auction rules (decoding,
// decryption, attestation).
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "enclave: " + e.Message
}

// PingResponse answers a health check.
type PingResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// KeyResponse represents the response from a key request to the TEE enclave
type KeyResponse struct {
	Response
	PublicKey             string                `json:"public_key"` // PEM format
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64"`
}

// DelegateRequest hands a Ready-turned-Active entry to the enclave.
type DelegateRequest struct {
	Type string         `json:"type"`
	Bid  core.SealedBid `json:"bid"`
}

// SubmitRequest asks the enclave to apply a new amount to the entry it holds
// for (Auction.Address, Bidder). Exactly one of Amount and SealedAmount is
// set. Deposited is the bid's public escrow; WalletBalance and VaultBalance
// are the public balances the top-up will be drawn from and added to.
type SubmitRequest struct {
	Type          string            `json:"type"`
	Auction       core.AuctionHouse `json:"auction"`
	Bidder        core.Pubkey       `json:"bidder"`
	Amount        uint64            `json:"amount,omitempty"`
	SealedAmount  *SealedAmount     `json:"sealed_amount,omitempty"`
	Deposited     uint64            `json:"deposited"`
	WalletBalance uint64            `json:"wallet_balance"`
	VaultBalance  uint64            `json:"vault_balance"`
	Now           int64             `json:"now"`
}

// SubmitResponse reveals only what the public ledger needs: the escrow top-up.
type SubmitResponse struct {
	Response
	TopUp uint64 `json:"top_up"`
}

// UndelegateRequest asks the enclave to validate and release an entry for
// commit. BidAddress is the public address of the entry, bound into the
// commitment hash.
type UndelegateRequest struct {
	Type       string            `json:"type"`
	Auction    core.AuctionHouse `json:"auction"`
	Bidder     core.Pubkey       `json:"bidder"`
	BidAddress core.Pubkey       `json:"bid_address"`
}

// UndelegateResponse returns the released entry and, when the enclave runs
// on attested hardware, a COSE attestation over its commitment.
type UndelegateResponse struct {
	Response
	Bid                   *core.SealedBid       `json:"bid,omitempty"`
	AttestationCOSEBase64 AttestationCOSEBase64 `json:"attestation_cose_base64,omitempty"`
}

// ForgetRequest tells the enclave a released entry was committed publicly
// and no longer needs custody.
type ForgetRequest struct {
	Type    string      `json:"type"`
	Auction core.Pubkey `json:"auction"`
	Bidder  core.Pubkey `json:"bidder"`
}

// KeyAttestationUserData represents the key-specific data embedded in key attestation
type KeyAttestationUserData struct {
	KeyAlgorithm string `json:"key_algorithm"` // e.g., "RSA-2048"
	PublicKey    string `json:"public_key"`    // PEM-encoded public key
}

// CommitAttestationUserData is embedded in the attestation the enclave
// produces when it releases a bid. The amount itself is not included; a
// bidder who knows it recomputes CommitHash.
type CommitAttestationUserData struct {
	Auction    core.Pubkey `json:"auction"`
	Bidder     core.Pubkey `json:"bidder"`
	BidAddress core.Pubkey `json:"bid_address"`
	CommitHash string      `json:"commit_hash"`
	HashNonce  string      `json:"hash_nonce"`
	Timestamp  time.Time   `json:"timestamp"`
}

// KeyAttestationDoc represents attestation specifically for key distribution
type KeyAttestationDoc struct {
	AttestationDoc
	UserData *KeyAttestationUserData `json:"user_data"`
}

// CommitAttestationDoc represents attestation for a released bid
type CommitAttestationDoc struct {
	AttestationDoc
	UserData *CommitAttestationUserData `json:"user_data"`
}

package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeCommitHash computes the commitment hash the private domain attests
// to when it releases a bid. Used by the enclave (to generate hashes) and by
// validation (to verify them).
//
// Formula: SHA256(bid_address_hex + "|" + amount + "|" + nonce)
func ComputeCommitHash(bid Pubkey, amount uint64, nonce string) string {
	data := fmt.Sprintf("%s|%d|%s", bid.String(), amount, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

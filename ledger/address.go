package ledger

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/cloudx-io/sealedbid/core"
)

const (
	auctionSeed = "auction"
	bidSeed     = "bid"
	vaultSeed   = "vault"

	identitySeed = "identity"
)

// DeriveAddress computes a program-owned account address from seeds. Each
// seed is length-prefixed so ("ab","c") and ("a","bc") never collide.
func DeriveAddress(programID string, seeds ...[]byte) core.Pubkey {
	hash, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized keys
	}
	var prefix [4]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(b)))
		hash.Write(prefix[:])
		hash.Write(b)
	}
	write([]byte(programID))
	for _, seed := range seeds {
		write(seed)
	}

	var pk core.Pubkey
	hash.Sum(pk[:0])
	return pk
}

// AuctionAddress derives the registry account of an auction.
func AuctionAddress(programID string, authority core.Pubkey, auctionID uint64) core.Pubkey {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], auctionID)
	return DeriveAddress(programID, []byte(auctionSeed), authority[:], id[:])
}

// BidAddress derives the sealed bid account of bidder in auction.
func BidAddress(programID string, auction, bidder core.Pubkey) core.Pubkey {
	return DeriveAddress(programID, []byte(bidSeed), auction[:], bidder[:])
}

// VaultAddress derives the escrow vault of auction.
func VaultAddress(programID string, auction core.Pubkey) core.Pubkey {
	return DeriveAddress(programID, []byte(vaultSeed), auction[:])
}

// IdentityFromName maps a human-readable signer name to a stable identity.
// Used by the CLI and the crank configuration, which name signers rather
// than carry keys.
func IdentityFromName(name string) core.Pubkey {
	return core.Pubkey(blake2b.Sum256([]byte(identitySeed + ":" + name)))
}

package core

import (
	"encoding/hex"
	"fmt"
)

// PubkeyLength is the size in bytes of an identity or account address.
const PubkeyLength = 32

// Pubkey identifies both signers (organizers, bidders) and accounts (auctions,
// bids, vaults). The zero value means "undefined".
type Pubkey [PubkeyLength]byte

// ParsePubkey decodes the hex text form produced by Pubkey.String.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey: %w", err)
	}
	if len(raw) != PubkeyLength {
		return pk, fmt.Errorf("invalid pubkey length: expected %d bytes, got %d", PubkeyLength, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

func (pk Pubkey) String() string {
	return hex.EncodeToString(pk[:])
}

// Short returns an abbreviated form for log lines.
func (pk Pubkey) Short() string {
	s := pk.String()
	return s[:8] + ".." + s[len(s)-4:]
}

func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// BidStatus is the lifecycle phase of a sealed bid.
type BidStatus uint8

const (
	// BidReady is a registered bid that has not been handed to the private domain.
	BidReady BidStatus = iota
	// BidActive is a delegated bid whose amount may still change.
	BidActive
	// BidCommitted is terminal: the amount is frozen and eligible for settlement.
	BidCommitted
)

func (s BidStatus) String() string {
	switch s {
	case BidReady:
		return "ready"
	case BidActive:
		return "active"
	case BidCommitted:
		return "committed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// AuctionHouse is the per-auction registry record: parameters, counters,
// the running result and the terminal phase flags.
type AuctionHouse struct {
	Address         Pubkey `json:"address"`
	Authority       Pubkey `json:"authority"`
	AuctionID       uint64 `json:"auction_id"`
	MinBid          uint64 `json:"min_bid"`
	MinIncrement    uint64 `json:"min_increment"`
	HighestBid      uint64 `json:"highest_bid"`
	Winner          Pubkey `json:"winner"`
	EndTime         int64  `json:"end_time"`
	BidderCount     uint32 `json:"bidder_count"`
	CommittedCount  uint32 `json:"committed_count"`
	SettledCount    uint32 `json:"settled_count"`
	Finalized       bool   `json:"finalized"`
	ProceedsClaimed bool   `json:"proceeds_claimed"`
}

// HasWinner reports whether any committed bid has been settled with a
// positive amount.
func (a *AuctionHouse) HasWinner() bool {
	return a.HighestBid > 0
}

// Ended reports whether bidding is closed at the given time.
func (a *AuctionHouse) Ended(now int64) bool {
	return now >= a.EndTime
}

// SealedBid is one bidder's entry in one auction.
type SealedBid struct {
	Auction       Pubkey    `json:"auction"`
	Bidder        Pubkey    `json:"bidder"`
	Amount        uint64    `json:"amount"`
	Deposited     uint64    `json:"deposited"`
	Status        BidStatus `json:"status"`
	Committed     bool      `json:"committed"`
	Settled       bool      `json:"settled"`
	RefundClaimed bool      `json:"refund_claimed"`
}

// Vault is the escrow balance custodied for one auction.
type Vault struct {
	Auction Pubkey `json:"auction"`
	Balance uint64 `json:"balance"`
}

// Wallet is a spendable balance owned by a signer. Deposits are drawn from it
// and payouts are credited to it.
type Wallet struct {
	Owner   Pubkey `json:"owner"`
	Balance uint64 `json:"balance"`
}

package auctions

import (
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
)

// Auction phases as reported by the gateway.
const (
	PhaseOpen      = "open"
	PhaseEnded     = "ended"
	PhaseFinalized = "finalized"
)

// Auction is the gateway view of an auction record.
type Auction struct {
	core.AuctionHouse
	Phase             string `json:"phase"`
	HighestBidDisplay string `json:"highest_bid_display"`
}

func newAuction(a core.AuctionHouse, now int64) Auction {
	phase := PhaseOpen
	switch {
	case a.Finalized:
		phase = PhaseFinalized
	case a.Ended(now):
		phase = PhaseEnded
	}
	return Auction{
		AuctionHouse:      a,
		Phase:             phase,
		HighestBidDisplay: core.FormatAmount(a.HighestBid),
	}
}

// Bid is the gateway view of a bid account. Status replaces the numeric
// lifecycle phase with its name.
type Bid struct {
	ledger.BidAccount
	Status           string `json:"status"`
	DepositedDisplay string `json:"deposited_display"`
}

func newBid(account ledger.BidAccount) Bid {
	return Bid{
		BidAccount:       account,
		Status:           account.Status.String(),
		DepositedDisplay: core.FormatAmount(account.Deposited),
	}
}

// Vault is the gateway view of an escrow vault.
type Vault struct {
	core.Vault
	BalanceDisplay string `json:"balance_display"`
}

// Attestation carries a bid's commit attestation in its compact form.
type Attestation struct {
	Bid         core.Pubkey `json:"bid"`
	Attestation string      `json:"attestation"`
}

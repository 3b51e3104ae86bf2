package core

// Event is a state-change notification emitted by a successful operation.
type Event interface {
	// Kind is the stable name observers filter on.
	Kind() string
	// AuctionKey is the auction the event belongs to.
	AuctionKey() Pubkey
}

const (
	KindAuctionCreated        = "auction_created"
	KindBidSubmitted          = "bid_submitted"
	KindBidCommitted          = "bid_committed"
	KindBidSettled            = "bid_settled"
	KindAuctionFinalized      = "auction_finalized"
	KindSellerProceedsClaimed = "seller_proceeds_claimed"
	KindRefundClaimed         = "refund_claimed"
)

type AuctionCreated struct {
	Auction      Pubkey `json:"auction"`
	Authority    Pubkey `json:"authority"`
	AuctionID    uint64 `json:"auction_id"`
	MinBid       uint64 `json:"min_bid"`
	MinIncrement uint64 `json:"min_increment"`
	EndsAt       int64  `json:"ends_at"`
}

// BidSubmitted reports an accepted raise. Amount is zero when the bid is
// held by a private domain that withholds it; the committed amount is
// published by BidCommittedEvent.
type BidSubmitted struct {
	Auction Pubkey `json:"auction"`
	Bidder  Pubkey `json:"bidder"`
	Amount  uint64 `json:"amount"`
}

type BidCommittedEvent struct {
	Auction Pubkey `json:"auction"`
	Bidder  Pubkey `json:"bidder"`
	Amount  uint64 `json:"amount"`
}

// BidSettled carries the running result after the bid was folded in.
type BidSettled struct {
	Auction           Pubkey `json:"auction"`
	Bidder            Pubkey `json:"bidder"`
	Amount            uint64 `json:"amount"`
	CurrentHighestBid uint64 `json:"current_highest_bid"`
	CurrentWinner     Pubkey `json:"current_winner"`
}

type AuctionFinalizedEvent struct {
	Auction  Pubkey `json:"auction"`
	Winner   Pubkey `json:"winner"`
	FinalBid uint64 `json:"final_bid"`
}

type SellerProceedsClaimed struct {
	Auction   Pubkey `json:"auction"`
	Authority Pubkey `json:"authority"`
	Amount    uint64 `json:"amount"`
}

type RefundClaimed struct {
	Auction Pubkey `json:"auction"`
	Bidder  Pubkey `json:"bidder"`
	Amount  uint64 `json:"amount"`
}

func (*AuctionCreated) Kind() string        { return KindAuctionCreated }
func (*BidSubmitted) Kind() string          { return KindBidSubmitted }
func (*BidCommittedEvent) Kind() string     { return KindBidCommitted }
func (*BidSettled) Kind() string            { return KindBidSettled }
func (*AuctionFinalizedEvent) Kind() string { return KindAuctionFinalized }
func (*SellerProceedsClaimed) Kind() string { return KindSellerProceedsClaimed }
func (*RefundClaimed) Kind() string         { return KindRefundClaimed }

func (e *AuctionCreated) AuctionKey() Pubkey        { return e.Auction }
func (e *BidSubmitted) AuctionKey() Pubkey          { return e.Auction }
func (e *BidCommittedEvent) AuctionKey() Pubkey     { return e.Auction }
func (e *BidSettled) AuctionKey() Pubkey            { return e.Auction }
func (e *AuctionFinalizedEvent) AuctionKey() Pubkey { return e.Auction }
func (e *SellerProceedsClaimed) AuctionKey() Pubkey { return e.Auction }
func (e *RefundClaimed) AuctionKey() Pubkey         { return e.Auction }

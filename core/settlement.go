package core

// Settle folds one committed bid into the auction's running result. The
// comparison is strict, so among equal amounts the first one settled keeps
// the lead, and since the highest bid only ever rises the final winner does
// not depend on the order bids are settled in.
func Settle(auction *AuctionHouse, bid *SealedBid, now int64) (*BidSettled, error) {
	if err := checkLinked(auction, bid); err != nil {
		return nil, err
	}
	if !auction.Ended(now) {
		return nil, ErrAuctionActive
	}
	if auction.Finalized {
		return nil, ErrAuctionFinalized
	}
	if bid.Status != BidCommitted || !bid.Committed {
		return nil, ErrBidNotCommitted
	}
	if bid.Settled {
		return nil, ErrBidAlreadySettled
	}
	settledCount, err := checkedIncrement(auction.SettledCount)
	if err != nil {
		return nil, err
	}

	if bid.Amount > auction.HighestBid {
		auction.HighestBid = bid.Amount
		auction.Winner = bid.Bidder
	}
	bid.Settled = true
	auction.SettledCount = settledCount

	return &BidSettled{
		Auction:           auction.Address,
		Bidder:            bid.Bidder,
		Amount:            bid.Amount,
		CurrentHighestBid: auction.HighestBid,
		CurrentWinner:     auction.Winner,
	}, nil
}

// Finalize locks the result once every committed bid has been settled.
// Callers that hit ErrUnsettledCommittedBids settle the remaining bids and
// retry; a failed call changes nothing.
func Finalize(auction *AuctionHouse, now int64) (*AuctionFinalizedEvent, error) {
	if !auction.Ended(now) {
		return nil, ErrAuctionActive
	}
	if auction.Finalized {
		return nil, ErrAuctionFinalized
	}
	if auction.SettledCount != auction.CommittedCount {
		return nil, ErrUnsettledCommittedBids
	}

	auction.Finalized = true

	return &AuctionFinalizedEvent{
		Auction:  auction.Address,
		Winner:   auction.Winner,
		FinalBid: auction.HighestBid,
	}, nil
}

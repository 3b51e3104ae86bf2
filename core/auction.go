package core

// CreateAuction builds a fresh registry record for an auction living at
// address. The deadline is absolute: bidding closes at now+duration and
// settlement opens at the same instant.
//
// Returns:
//   - the new AuctionHouse with all counters and flags zeroed
//   - the AuctionCreated notification carrying the computed deadline
func CreateAuction(address, authority Pubkey, auctionID, minBid, minIncrement uint64, duration, now int64) (*AuctionHouse, *AuctionCreated, error) {
	if duration <= 0 {
		return nil, nil, ErrInvalidDuration
	}
	if minBid == 0 {
		return nil, nil, ErrInvalidMinBid
	}
	endTime, err := checkedAddTime(now, duration)
	if err != nil {
		return nil, nil, err
	}

	auction := &AuctionHouse{
		Address:      address,
		Authority:    authority,
		AuctionID:    auctionID,
		MinBid:       minBid,
		MinIncrement: minIncrement,
		EndTime:      endTime,
	}

	return auction, &AuctionCreated{
		Auction:      address,
		Authority:    authority,
		AuctionID:    auctionID,
		MinBid:       minBid,
		MinIncrement: minIncrement,
		EndsAt:       endTime,
	}, nil
}

// RegisterBid creates the bidder's entry in the Ready state and counts the
// bidder on the auction. No funds move.
func RegisterBid(auction *AuctionHouse, bidder Pubkey) (*SealedBid, error) {
	count, err := checkedIncrement(auction.BidderCount)
	if err != nil {
		return nil, err
	}
	auction.BidderCount = count

	return &SealedBid{
		Auction: auction.Address,
		Bidder:  bidder,
		Status:  BidReady,
	}, nil
}

func checkLinked(auction *AuctionHouse, bid *SealedBid) error {
	if bid.Auction != auction.Address {
		return ErrBidAuctionMismatch
	}
	return nil
}

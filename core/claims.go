package core

// ClaimSellerProceeds pays the winning amount from the vault to the seller.
// It succeeds at most once per auction.
func ClaimSellerProceeds(auction *AuctionHouse, vault *Vault, seller *Wallet) (*SellerProceedsClaimed, error) {
	if !auction.Finalized {
		return nil, ErrAuctionNotFinalized
	}
	if auction.ProceedsClaimed {
		return nil, ErrProceedsAlreadyClaimed
	}
	if !auction.HasWinner() {
		return nil, ErrNoWinningBid
	}

	if err := vault.TransferOut(seller, auction.HighestBid); err != nil {
		return nil, err
	}
	auction.ProceedsClaimed = true

	return &SellerProceedsClaimed{
		Auction:   auction.Address,
		Authority: auction.Authority,
		Amount:    auction.HighestBid,
	}, nil
}

// ClaimRefund returns everything a non-winning bidder escrowed. Only the
// deposit and the winner are checked, so a bid that was delegated but never
// committed is refundable too once the auction is finalized.
func ClaimRefund(auction *AuctionHouse, bid *SealedBid, vault *Vault, bidder *Wallet) (*RefundClaimed, error) {
	if err := checkLinked(auction, bid); err != nil {
		return nil, err
	}
	if !auction.Finalized {
		return nil, ErrAuctionNotFinalized
	}
	if bid.Bidder == auction.Winner {
		return nil, ErrWinnerNoRefund
	}
	if bid.RefundClaimed {
		return nil, ErrRefundAlreadyClaimed
	}
	if bid.Deposited == 0 {
		return nil, ErrNoRefundAvailable
	}

	refund := bid.Deposited
	if err := vault.TransferOut(bidder, refund); err != nil {
		return nil, err
	}
	bid.RefundClaimed = true

	return &RefundClaimed{
		Auction: auction.Address,
		Bidder:  bid.Bidder,
		Amount:  refund,
	}, nil
}

// AuthorizeClose reports whether the entry's funds are fully accounted for:
// the winner's deposit became seller proceeds, everyone else must have
// claimed their refund first.
func AuthorizeClose(auction *AuctionHouse, bid *SealedBid) error {
	if err := checkLinked(auction, bid); err != nil {
		return err
	}
	if !auction.Finalized {
		return ErrAuctionNotFinalized
	}
	if bid.Bidder != auction.Winner && !bid.RefundClaimed {
		return ErrCloseNotAllowed
	}
	return nil
}

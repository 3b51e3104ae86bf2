package core

// Delegate moves a Ready bid into the Active state. The caller is
// responsible for handing the entry to the private execution domain; from
// here on the amount may only change through Submit until Commit.
func Delegate(bid *SealedBid) error {
	if bid.Status != BidReady {
		return ErrCannotDelegate
	}
	bid.Status = BidActive
	return nil
}

// ValidateSubmit checks every rule a new bid amount must satisfy and returns
// the escrow top-up it requires. It does not mutate anything, which lets the
// private domain apply the same rules to the copy it holds.
func ValidateSubmit(auction *AuctionHouse, bid *SealedBid, amount uint64, now int64) (topUp uint64, err error) {
	if err := checkLinked(auction, bid); err != nil {
		return 0, err
	}
	if auction.Ended(now) {
		return 0, ErrAuctionEnded
	}
	if auction.Finalized {
		return 0, ErrAuctionFinalized
	}
	if amount < auction.MinBid {
		return 0, ErrBidBelowMinimum
	}
	if bid.Status != BidActive {
		return 0, ErrAccountNotDelegated
	}

	if bid.Amount > 0 {
		requiredMin, err := checkedAdd(bid.Amount, auction.MinIncrement)
		if err != nil {
			return 0, err
		}
		if amount < requiredMin {
			return 0, ErrBidIncrementTooSmall
		}
	}

	// Deposit is a high-water mark: only the excess over what is already
	// escrowed has to be transferred.
	if amount > bid.Deposited {
		return checkedSub(amount, bid.Deposited)
	}
	return 0, nil
}

// Submit replaces the bid amount and escrows any top-up from funds into
// vault. Either every field changes or none does.
func Submit(auction *AuctionHouse, bid *SealedBid, funds *Wallet, vault *Vault, amount uint64, now int64) (*BidSubmitted, error) {
	topUp, err := ValidateSubmit(auction, bid, amount, now)
	if err != nil {
		return nil, err
	}

	if topUp > 0 {
		if err := vault.Deposit(funds, topUp); err != nil {
			return nil, err
		}
		bid.Deposited = amount
	}
	bid.Amount = amount

	return &BidSubmitted{
		Auction: auction.Address,
		Bidder:  bid.Bidder,
		Amount:  amount,
	}, nil
}

// ValidateCommit checks that an Active bid can be frozen.
func ValidateCommit(auction *AuctionHouse, bid *SealedBid) error {
	if err := checkLinked(auction, bid); err != nil {
		return err
	}
	if bid.Status != BidActive {
		return ErrAccountNotDelegated
	}
	if bid.Amount < auction.MinBid {
		return ErrBidBelowMinimum
	}
	return nil
}

// Commit freezes the bid. The committed flag, not the status, drives the
// auction counter, so a repeated commit never counts the bid twice.
func Commit(auction *AuctionHouse, bid *SealedBid) (*BidCommittedEvent, error) {
	if err := ValidateCommit(auction, bid); err != nil {
		return nil, err
	}

	committedCount := auction.CommittedCount
	if !bid.Committed {
		next, err := checkedIncrement(committedCount)
		if err != nil {
			return nil, err
		}
		committedCount = next
	}

	bid.Status = BidCommitted
	bid.Committed = true
	auction.CommittedCount = committedCount

	return &BidCommittedEvent{
		Auction: auction.Address,
		Bidder:  bid.Bidder,
		Amount:  bid.Amount,
	}, nil
}

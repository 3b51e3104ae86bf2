package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

// committedBids registers, funds and commits one bid per amount.
func committedBids(t *testing.T, auction *AuctionHouse, amounts ...uint64) []*SealedBid {
	t.Helper()
	bids := make([]*SealedBid, 0, len(amounts))
	for i, amount := range amounts {
		bid := newActiveBid(t, auction, testKey(byte(0x10+i)))
		bid.Amount = amount
		bid.Deposited = amount
		_, err := Commit(auction, bid)
		check.NoError(t, err)
		bids = append(bids, bid)
	}
	return bids
}

func TestSettle(t *testing.T) {
	auction := newTestAuction(t)
	bids := committedBids(t, auction, 150, 200)
	now := auction.EndTime

	settled, err := Settle(auction, bids[0], now)
	check.NoError(t, err)
	check.Equal(t, uint64(150), settled.CurrentHighestBid)
	check.Equal(t, bids[0].Bidder, settled.CurrentWinner)
	check.Equal(t, KindBidSettled, settled.Kind())
	check.True(t, bids[0].Settled)
	check.Equal(t, uint32(1), auction.SettledCount)

	settled, err = Settle(auction, bids[1], now)
	check.NoError(t, err)
	check.Equal(t, uint64(200), settled.CurrentHighestBid)
	check.Equal(t, bids[1].Bidder, settled.CurrentWinner)
	check.Equal(t, uint32(2), auction.SettledCount)
}

func TestSettle_Rejections(t *testing.T) {
	auction := newTestAuction(t)
	bids := committedBids(t, auction, 150)
	active := newActiveBid(t, auction, testBidderC)
	active.Amount = 300

	_, err := Settle(auction, bids[0], auction.EndTime-1)
	checkErrIs(t, err, ErrAuctionActive)

	_, err = Settle(auction, active, auction.EndTime)
	checkErrIs(t, err, ErrBidNotCommitted)

	_, err = Settle(auction, bids[0], auction.EndTime)
	check.NoError(t, err)
	_, err = Settle(auction, bids[0], auction.EndTime)
	checkErrIs(t, err, ErrBidAlreadySettled)
	check.Equal(t, uint32(1), auction.SettledCount)

	auction.Finalized = true
	_, err = Settle(auction, bids[0], auction.EndTime)
	checkErrIs(t, err, ErrAuctionFinalized)

	foreign := &SealedBid{Auction: testKey(0xEE), Status: BidCommitted, Committed: true}
	_, err = Settle(auction, foreign, auction.EndTime)
	checkErrIs(t, err, ErrBidAuctionMismatch)
}

func TestSettle_TieKeepsFirstSettled(t *testing.T) {
	auction := newTestAuction(t)
	bids := committedBids(t, auction, 200, 200)

	_, err := Settle(auction, bids[1], auction.EndTime)
	check.NoError(t, err)
	_, err = Settle(auction, bids[0], auction.EndTime)
	check.NoError(t, err)

	check.Equal(t, bids[1].Bidder, auction.Winner)
	check.Equal(t, uint64(200), auction.HighestBid)
}

func TestSettle_OrderIndependent(t *testing.T) {
	amounts := []uint64{150, 320, 110, 275, 319}
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 4, 0, 3, 1},
	}

	for _, order := range orders {
		auction := newTestAuction(t)
		bids := committedBids(t, auction, amounts...)
		for _, i := range order {
			_, err := Settle(auction, bids[i], auction.EndTime)
			check.NoError(t, err)
		}

		check.Equal(t, uint64(320), auction.HighestBid)
		check.Equal(t, bids[1].Bidder, auction.Winner)
	}
}

func TestFinalize(t *testing.T) {
	auction := newTestAuction(t)
	bids := committedBids(t, auction, 150, 200)

	_, err := Finalize(auction, auction.EndTime-1)
	checkErrIs(t, err, ErrAuctionActive)

	_, err = Settle(auction, bids[0], auction.EndTime)
	check.NoError(t, err)

	// Barrier: one committed bid is still unsettled
	_, err = Finalize(auction, auction.EndTime)
	checkErrIs(t, err, ErrUnsettledCommittedBids)
	check.False(t, auction.Finalized)

	_, err = Settle(auction, bids[1], auction.EndTime)
	check.NoError(t, err)

	finalized, err := Finalize(auction, auction.EndTime)
	check.NoError(t, err)
	check.True(t, auction.Finalized)
	check.Equal(t, bids[1].Bidder, finalized.Winner)
	check.Equal(t, uint64(200), finalized.FinalBid)
	check.Equal(t, KindAuctionFinalized, finalized.Kind())

	_, err = Finalize(auction, auction.EndTime)
	checkErrIs(t, err, ErrAuctionFinalized)
}

func TestFinalize_NoCommittedBids(t *testing.T) {
	auction := newTestAuction(t)

	finalized, err := Finalize(auction, auction.EndTime)
	check.NoError(t, err)
	check.True(t, finalized.Winner.IsZero())
	check.Equal(t, uint64(0), finalized.FinalBid)
	check.False(t, auction.HasWinner())
}

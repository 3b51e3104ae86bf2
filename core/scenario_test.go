package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestScenario_TwoBidders(t *testing.T) {
	auction := newTestAuction(t)
	vault := &Vault{Auction: auction.Address}
	seller := &Wallet{Owner: testAuthority}
	walletA := &Wallet{Owner: testBidderA, Balance: 1000}
	walletB := &Wallet{Owner: testBidderB, Balance: 1000}

	bidA := newActiveBid(t, auction, testBidderA)
	bidB := newActiveBid(t, auction, testBidderB)
	check.Equal(t, uint32(2), auction.BidderCount)

	_, err := Submit(auction, bidA, walletA, vault, 100, testStart+10)
	check.NoError(t, err)
	_, err = Submit(auction, bidA, walletA, vault, 150, testStart+20)
	check.NoError(t, err)
	_, err = Submit(auction, bidB, walletB, vault, 200, testStart+30)
	check.NoError(t, err)

	// Equal resubmit fails and changes nothing
	_, err = Submit(auction, bidB, walletB, vault, 200, testStart+40)
	checkErrIs(t, err, ErrBidIncrementTooSmall)
	check.Equal(t, uint64(350), vault.Balance)

	_, err = Commit(auction, bidA)
	check.NoError(t, err)
	_, err = Commit(auction, bidB)
	check.NoError(t, err)

	// Bidding is closed at the deadline
	_, err = Submit(auction, bidA, walletA, vault, 300, auction.EndTime)
	checkErrIs(t, err, ErrAuctionEnded)

	_, err = Settle(auction, bidB, auction.EndTime)
	check.NoError(t, err)
	_, err = Settle(auction, bidA, auction.EndTime)
	check.NoError(t, err)
	_, err = Finalize(auction, auction.EndTime)
	check.NoError(t, err)
	check.Equal(t, testBidderB, auction.Winner)
	check.Equal(t, uint64(200), auction.HighestBid)

	_, err = ClaimSellerProceeds(auction, vault, seller)
	check.NoError(t, err)
	check.Equal(t, uint64(200), seller.Balance)

	_, err = ClaimRefund(auction, bidA, vault, walletA)
	check.NoError(t, err)
	check.Equal(t, uint64(1000), walletA.Balance)
	check.Equal(t, uint64(800), walletB.Balance)

	check.NoError(t, AuthorizeClose(auction, bidA))
	check.NoError(t, AuthorizeClose(auction, bidB))

	// Conservation: everything escrowed has been paid out
	check.Equal(t, uint64(0), vault.Balance)
	check.Equal(t, uint64(2000), walletA.Balance+walletB.Balance+seller.Balance)
}

package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
)

const (
	testStart    int64 = 1_700_000_000
	testDuration int64 = 3600
)

func testKey(b byte) Pubkey {
	var pk Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

var (
	testAuctionAddr = testKey(0xA1)
	testAuthority   = testKey(0xA0)
	testBidderA     = testKey(0x0A)
	testBidderB     = testKey(0x0B)
	testBidderC     = testKey(0x0C)
)

// newTestAuction creates an auction with min bid 100 and increment 10 ending
// testDuration seconds after testStart.
func newTestAuction(t *testing.T) *AuctionHouse {
	t.Helper()
	auction, _, err := CreateAuction(testAuctionAddr, testAuthority, 1, 100, 10, testDuration, testStart)
	check.NoError(t, err)
	return auction
}

func newActiveBid(t *testing.T, auction *AuctionHouse, bidder Pubkey) *SealedBid {
	t.Helper()
	bid, err := RegisterBid(auction, bidder)
	check.NoError(t, err)
	check.NoError(t, Delegate(bid))
	return bid
}

func checkErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("expected error %v, got %v", target, err)
	}
}

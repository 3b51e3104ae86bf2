package ledger

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/sealedbid/core"
)

// Queries read committed state only and never block on a running
// instruction's private domain call.

func (l *Ledger) Auction(address core.Pubkey) (*core.AuctionHouse, error) {
	var auction core.AuctionHouse
	if err := l.store.get(auctionKey(address), &auction); err != nil {
		return nil, notFound(err)
	}
	return &auction, nil
}

// Auctions lists every auction record in address order.
func (l *Ledger) Auctions() ([]core.AuctionHouse, error) {
	var auctions []core.AuctionHouse
	err := l.store.scan([]byte{prefixAuction}, func(_, value []byte) error {
		var auction core.AuctionHouse
		if err := cbor.Unmarshal(value, &auction); err != nil {
			return fmt.Errorf("decode auction: %w", err)
		}
		auctions = append(auctions, auction)
		return nil
	})
	return auctions, err
}

func (l *Ledger) SealedBid(auction, bidder core.Pubkey) (*BidAccount, error) {
	var account BidAccount
	if err := l.store.get(bidKey(auction, bidder), &account); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// Bids lists the bid accounts of one auction ordered by bidder.
func (l *Ledger) Bids(auction core.Pubkey) ([]BidAccount, error) {
	var bids []BidAccount
	err := l.store.scan(bidPrefix(auction), func(_, value []byte) error {
		var account BidAccount
		if err := cbor.Unmarshal(value, &account); err != nil {
			return fmt.Errorf("decode bid: %w", err)
		}
		bids = append(bids, account)
		return nil
	})
	return bids, err
}

func (l *Ledger) Vault(auction core.Pubkey) (*core.Vault, error) {
	var vault core.Vault
	if err := l.store.get(vaultKey(auction), &vault); err != nil {
		return nil, notFound(err)
	}
	return &vault, nil
}

// Balance returns owner's wallet balance; unfunded owners have zero.
func (l *Ledger) Balance(owner core.Pubkey) (uint64, error) {
	wallet := core.Wallet{Owner: owner}
	err := l.store.get(walletKey(owner), &wallet)
	if err != nil && !errors.Is(err, errRecordNotFound) {
		return 0, err
	}
	return wallet.Balance, nil
}

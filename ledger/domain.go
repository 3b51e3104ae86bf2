package ledger

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
)

// SubmitRequest carries a new amount for a delegated bid into the private
// domain. Exactly one of Amount and Sealed is used; Sealed wins when set.
// Deposited is the escrow the public ledger holds for the bid, and the
// balances are the public wallet and vault the top-up will move between.
// The domain computes the top-up from these and never from its own copy,
// whose escrow may be ahead of a submission the host did not record.
type SubmitRequest struct {
	Auction       core.AuctionHouse
	Bidder        core.Pubkey
	Amount        uint64
	Sealed        *enclaveapi.SealedAmount
	Deposited     uint64
	WalletBalance uint64
	VaultBalance  uint64
	Now           int64
}

// SubmitResult is what the private domain discloses about an accepted
// submission. Amount is zero when the domain keeps it private.
type SubmitResult struct {
	TopUp  uint64
	Amount uint64
}

// Release is a bid handed back by the private domain for commit.
type Release struct {
	Bid         core.SealedBid
	Attestation enclaveapi.AttestationCOSEBase64
}

// PrivateDomain holds the live copy of every Active bid. Its calls run the
// same core rules the public ledger would, on the private copy.
type PrivateDomain interface {
	// Delegate takes custody of an Active entry, replacing any stale copy.
	Delegate(ctx context.Context, bid core.SealedBid) error
	// Submit applies a new amount to the held entry and reports the escrow
	// top-up it requires.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	// Undelegate validates the held entry for commit and returns it. The
	// entry stays held until Forget, so a release is repeatable.
	Undelegate(ctx context.Context, auction core.AuctionHouse, bidder, bidAddress core.Pubkey) (*Release, error)
	// Forget drops an entry once its commit is recorded publicly.
	Forget(ctx context.Context, auction, bidder core.Pubkey) error
}

type entryKey struct {
	auction core.Pubkey
	bidder  core.Pubkey
}

// MemoryDomain is an in-process PrivateDomain. It is not private from the
// host; it exists for development nodes and tests. With a key it also
// accepts sealed amounts.
type MemoryDomain struct {
	mu      sync.Mutex
	entries map[entryKey]core.SealedBid
	key     *rsa.PrivateKey
}

func NewMemoryDomain(key *rsa.PrivateKey) *MemoryDomain {
	return &MemoryDomain{
		entries: make(map[entryKey]core.SealedBid),
		key:     key,
	}
}

func (d *MemoryDomain) Delegate(_ context.Context, bid core.SealedBid) error {
	if bid.Status != core.BidActive {
		return core.ErrCannotDelegate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[entryKey{bid.Auction, bid.Bidder}] = bid
	return nil
}

func (d *MemoryDomain) Submit(_ context.Context, req SubmitRequest) (*SubmitResult, error) {
	amount := req.Amount
	if req.Sealed != nil {
		if d.key == nil {
			return nil, fmt.Errorf("sealed amounts are not supported without a domain key")
		}
		opened, err := enclaveapi.OpenAmount(req.Sealed, d.key)
		if err != nil {
			return nil, err
		}
		amount = opened
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := entryKey{req.Auction.Address, req.Bidder}
	entry, ok := d.entries[key]
	if !ok {
		return nil, core.ErrAccountNotDelegated
	}

	entry.Deposited = req.Deposited
	wallet := core.Wallet{Owner: req.Bidder, Balance: req.WalletBalance}
	vault := core.Vault{Auction: req.Auction.Address, Balance: req.VaultBalance}
	if _, err := core.Submit(&req.Auction, &entry, &wallet, &vault, amount, req.Now); err != nil {
		return nil, err
	}
	d.entries[key] = entry

	return &SubmitResult{
		TopUp:  req.WalletBalance - wallet.Balance,
		Amount: amount,
	}, nil
}

func (d *MemoryDomain) Undelegate(_ context.Context, auction core.AuctionHouse, bidder, _ core.Pubkey) (*Release, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := entryKey{auction.Address, bidder}
	entry, ok := d.entries[key]
	if !ok {
		return nil, core.ErrAccountNotDelegated
	}
	if err := core.ValidateCommit(&auction, &entry); err != nil {
		return nil, err
	}
	return &Release{Bid: entry}, nil
}

func (d *MemoryDomain) Forget(_ context.Context, auction, bidder core.Pubkey) error {
	d.mu.Lock()
	delete(d.entries, entryKey{auction, bidder})
	d.mu.Unlock()
	return nil
}

// Held returns the private copy of a delegated entry.
func (d *MemoryDomain) Held(auction, bidder core.Pubkey) (core.SealedBid, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[entryKey{auction, bidder}]
	return entry, ok
}

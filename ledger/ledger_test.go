package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
)

func TestLedger_FullAuction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	env.activeBid(t, auction, testBob)

	// Rent is charged at registration
	check.Equal(t, testFunds-testRent, env.balance(t, testAlice))

	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 150))
	assert.NoError(t, l.SubmitSealedBid(ctx, testBob, auction, 180))
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 200))

	// Only the top-up moves on a raise
	check.Equal(t, testFunds-testRent-200, env.balance(t, testAlice))
	check.Equal(t, uint64(380), env.vaultBalance(t, auction))

	// While Active the public record does not carry the live amount
	account, err := l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidActive, account.Status)
	check.Equal(t, uint64(0), account.Amount)
	check.Equal(t, uint64(200), account.Deposited)

	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	assert.NoError(t, l.CommitBid(ctx, testBob, auction))

	account, err = l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidCommitted, account.Status)
	check.Equal(t, uint64(200), account.Amount)
	_, held := env.domain.Held(auction, testAlice)
	check.False(t, held)

	env.clock.Advance(testDuration)
	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testBob))
	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testAlice))
	assert.NoError(t, l.FinalizeAuction(ctx, testAuthority, auction))

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.True(t, house.Finalized)
	check.Equal(t, testAlice, house.Winner)
	check.Equal(t, uint64(200), house.HighestBid)
	check.Equal(t, uint32(2), house.CommittedCount)
	check.Equal(t, uint32(2), house.SettledCount)

	assert.NoError(t, l.ClaimSellerProceeds(ctx, testAuthority, auction))
	assert.NoError(t, l.ClaimRefund(ctx, testBob, auction))
	checkErrIs(t, l.ClaimRefund(ctx, testAlice, auction), core.ErrWinnerNoRefund)

	check.Equal(t, uint64(200), env.balance(t, testAuthority))
	check.Equal(t, uint64(0), env.vaultBalance(t, auction))

	assert.NoError(t, l.CloseSealedBid(ctx, testAlice, auction))
	assert.NoError(t, l.CloseSealedBid(ctx, testBob, auction))

	check.Equal(t, testFunds-200, env.balance(t, testAlice))
	check.Equal(t, testFunds, env.balance(t, testBob))

	_, err = l.SealedBid(auction, testAlice)
	checkErrIs(t, err, core.ErrAccountNotFound)
}

func TestLedger_EncryptedBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)

	var submitted []*core.BidSubmitted
	cancel := env.ledger.Notifier().Subscribe(func(n Notification) {
		if ev, ok := n.Event.(*core.BidSubmitted); ok {
			submitted = append(submitted, ev)
		}
	})
	defer cancel()

	sealed, err := enclaveapi.SealAmount(250, &env.key.PublicKey, enclaveapi.HashAlgorithmSHA256)
	assert.NoError(t, err)
	assert.NoError(t, env.ledger.SubmitEncryptedBid(ctx, testAlice, auction, sealed))

	check.Equal(t, uint64(250), env.vaultBalance(t, auction))
	held, ok := env.domain.Held(auction, testAlice)
	check.True(t, ok)
	check.Equal(t, uint64(250), held.Amount)
	assert.Equal(t, 1, len(submitted))
	check.Equal(t, uint64(250), submitted[0].Amount)

	assert.NoError(t, env.ledger.CommitBid(ctx, testAlice, auction))
	account, err := env.ledger.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, uint64(250), account.Amount)
}

func TestLedger_EncryptedBidRequiresPayload(t *testing.T) {
	env := newTestEnv(t)
	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)

	check.Error(t, env.ledger.SubmitEncryptedBid(context.Background(), testAlice, auction, nil))
}

func TestLedger_SubmitRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("ready bid is not delegated", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)
		_, err := env.ledger.InitializeSealedBid(ctx, testAlice, auction)
		assert.NoError(t, err)

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150), core.ErrAccountNotDelegated)
	})

	t.Run("ended auction", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)
		env.activeBid(t, auction, testAlice)
		env.clock.Advance(testDuration)

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150), core.ErrAuctionEnded)
	})

	t.Run("below minimum", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)
		env.activeBid(t, auction, testAlice)

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 99), core.ErrBidBelowMinimum)
	})

	t.Run("increment too small", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)
		env.activeBid(t, auction, testAlice)
		assert.NoError(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150))

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 159), core.ErrBidIncrementTooSmall)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)
		env.activeBid(t, auction, testAlice)

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, testFunds), core.ErrInsufficientFunds)
		check.Equal(t, uint64(0), env.vaultBalance(t, auction))
		held, _ := env.domain.Held(auction, testAlice)
		check.Equal(t, uint64(0), held.Amount)
	})

	t.Run("unregistered bidder", func(t *testing.T) {
		env := newTestEnv(t)
		auction := env.createAuction(t)

		checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150), core.ErrAccountNotFound)
	})
}

func TestLedger_AccountLifecycleErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	_, err := l.CreateAuction(ctx, testAuthority, 1, 100, 10, testDuration)
	checkErrIs(t, err, core.ErrAccountExists)

	_, err = l.CreateAuction(ctx, testAuthority, 2, 0, 10, testDuration)
	checkErrIs(t, err, core.ErrInvalidMinBid)

	_, err = l.InitializeSealedBid(ctx, testAlice, IdentityFromName("nowhere"))
	checkErrIs(t, err, core.ErrAccountNotFound)

	env.activeBid(t, auction, testAlice)
	_, err = l.InitializeSealedBid(ctx, testAlice, auction)
	checkErrIs(t, err, core.ErrAccountExists)

	checkErrIs(t, l.DelegateBid(ctx, testAlice, auction), core.ErrCannotDelegate)

	// An unfunded signer cannot pay the rent
	_, err = l.InitializeSealedBid(ctx, IdentityFromName("pauper"), auction)
	checkErrIs(t, err, core.ErrInsufficientFunds)

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.Equal(t, uint32(1), house.BidderCount)
}

func TestLedger_AuthorityOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 150))
	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	env.clock.Advance(testDuration)
	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testAlice))

	checkErrIs(t, l.FinalizeAuction(ctx, testBob, auction), core.ErrUnauthorized)
	assert.NoError(t, l.FinalizeAuction(ctx, testAuthority, auction))
	checkErrIs(t, l.ClaimSellerProceeds(ctx, testAlice, auction), core.ErrUnauthorized)
	assert.NoError(t, l.ClaimSellerProceeds(ctx, testAuthority, auction))
	checkErrIs(t, l.ClaimSellerProceeds(ctx, testAuthority, auction), core.ErrProceedsAlreadyClaimed)
}

func TestLedger_FinalizeWaitsForSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 150))
	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))

	checkErrIs(t, l.FinalizeAuction(ctx, testAuthority, auction), core.ErrAuctionActive)
	checkErrIs(t, l.SettleCommittedBid(ctx, auction, testAlice), core.ErrAuctionActive)

	env.clock.Advance(testDuration)
	checkErrIs(t, l.FinalizeAuction(ctx, testAuthority, auction), core.ErrUnsettledCommittedBids)

	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testAlice))
	checkErrIs(t, l.SettleCommittedBid(ctx, auction, testAlice), core.ErrBidAlreadySettled)
	assert.NoError(t, l.FinalizeAuction(ctx, testAuthority, auction))
	checkErrIs(t, l.FinalizeAuction(ctx, testAuthority, auction), core.ErrAuctionFinalized)
}

func TestLedger_UncommittedBidRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	env.activeBid(t, auction, testBob)
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 150))
	assert.NoError(t, l.SubmitSealedBid(ctx, testBob, auction, 300))
	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	// Bob never commits

	env.clock.Advance(testDuration)
	checkErrIs(t, l.ClaimRefund(ctx, testBob, auction), core.ErrAuctionNotFinalized)
	checkErrIs(t, l.CloseSealedBid(ctx, testBob, auction), core.ErrAuctionNotFinalized)

	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testAlice))
	assert.NoError(t, l.FinalizeAuction(ctx, testAuthority, auction))

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.Equal(t, testAlice, house.Winner)

	checkErrIs(t, l.CloseSealedBid(ctx, testBob, auction), core.ErrCloseNotAllowed)
	assert.NoError(t, l.ClaimRefund(ctx, testBob, auction))
	checkErrIs(t, l.ClaimRefund(ctx, testBob, auction), core.ErrRefundAlreadyClaimed)
	check.Equal(t, testFunds-testRent, env.balance(t, testBob))
	check.Equal(t, uint64(150), env.vaultBalance(t, auction))
}

func TestLedger_CommitRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	_, err := l.InitializeSealedBid(ctx, testAlice, auction)
	assert.NoError(t, err)
	checkErrIs(t, l.CommitBid(ctx, testAlice, auction), core.ErrAccountNotDelegated)

	assert.NoError(t, l.DelegateBid(ctx, testAlice, auction))
	// Nothing submitted yet
	checkErrIs(t, l.CommitBid(ctx, testAlice, auction), core.ErrBidBelowMinimum)

	// The entry stays with the domain and can still be raised
	_, held := env.domain.Held(auction, testAlice)
	check.True(t, held)
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 120))
	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	checkErrIs(t, l.CommitBid(ctx, testAlice, auction), core.ErrAccountNotDelegated)
	checkErrIs(t, l.SubmitSealedBid(ctx, testAlice, auction, 200), core.ErrAccountNotDelegated)

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.Equal(t, uint32(1), house.CommittedCount)
}

// failingDomain accepts custody but fails every submission.
type failingDomain struct {
	*MemoryDomain
	err error
}

func (d *failingDomain) Submit(context.Context, SubmitRequest) (*SubmitResult, error) {
	return nil, d.err
}

func TestLedger_DomainFailureChangesNothing(t *testing.T) {
	unavailable := errors.New("domain unavailable")
	domain := &failingDomain{MemoryDomain: NewMemoryDomain(nil), err: unavailable}
	env := newTestEnvWithDomain(t, domain, nil)
	ctx := context.Background()

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)

	before, err := env.ledger.SealedBid(auction, testAlice)
	assert.NoError(t, err)

	checkErrIs(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150), unavailable)

	after, err := env.ledger.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, *before, *after)
	check.Equal(t, testFunds-testRent, env.balance(t, testAlice))
	check.Equal(t, uint64(0), env.vaultBalance(t, auction))
}

// rejectingDelegateDomain refuses custody.
type rejectingDelegateDomain struct {
	*MemoryDomain
}

func (rejectingDelegateDomain) Delegate(context.Context, core.SealedBid) error {
	return errors.New("no capacity")
}

func TestLedger_DelegateFailureKeepsBidReady(t *testing.T) {
	env := newTestEnvWithDomain(t, rejectingDelegateDomain{NewMemoryDomain(nil)}, nil)
	ctx := context.Background()

	auction := env.createAuction(t)
	_, err := env.ledger.InitializeSealedBid(ctx, testAlice, auction)
	assert.NoError(t, err)

	check.Error(t, env.ledger.DelegateBid(ctx, testAlice, auction))

	account, err := env.ledger.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidReady, account.Status)
}

func TestLedger_Queries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := env.ledger

	first := env.createAuction(t)
	second, err := l.CreateAuction(ctx, testAuthority, 2, 500, 50, testDuration)
	assert.NoError(t, err)

	env.activeBid(t, first, testAlice)
	env.activeBid(t, first, testBob)
	env.activeBid(t, second, testBob)

	auctions, err := l.Auctions()
	assert.NoError(t, err)
	check.Equal(t, 2, len(auctions))

	bids, err := l.Bids(first)
	assert.NoError(t, err)
	check.Equal(t, 2, len(bids))
	for _, bid := range bids {
		check.Equal(t, first, bid.Auction)
		check.Equal(t, l.BidAddress(first, bid.Bidder), bid.Address)
		check.Equal(t, testRent, bid.Rent)
	}

	bids, err = l.Bids(second)
	assert.NoError(t, err)
	check.Equal(t, 1, len(bids))

	vault, err := l.Vault(first)
	assert.NoError(t, err)
	check.Equal(t, first, vault.Auction)

	_, err = l.Auction(IdentityFromName("missing"))
	checkErrIs(t, err, core.ErrAccountNotFound)

	check.Equal(t, uint64(0), env.balance(t, IdentityFromName("stranger")))
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	clock := NewManualClock(testStart)

	store, err := OpenStore(dir, 16)
	assert.NoError(t, err)
	l := New(store, NewMemoryDomain(nil), clock, Options{})
	assert.NoError(t, l.Airdrop(ctx, testAlice, testFunds))
	auction, err := l.CreateAuction(ctx, testAuthority, 7, 100, 10, testDuration)
	assert.NoError(t, err)
	_, err = l.InitializeSealedBid(ctx, testAlice, auction)
	assert.NoError(t, err)
	assert.NoError(t, store.Close())

	store, err = OpenStore(dir, 16)
	assert.NoError(t, err)
	defer store.Close()
	l = New(store, NewMemoryDomain(nil), clock, Options{})

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.Equal(t, uint64(7), house.AuctionID)
	check.Equal(t, uint32(1), house.BidderCount)

	account, err := l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidReady, account.Status)
	check.Equal(t, testAlice, account.Bidder)
}

var errReplyLost = errors.New("read submit_request response: i/o timeout")

// lossyDomain applies calls to its MemoryDomain and then reports a transport
// failure for the next dropped reply, as if the host never heard back.
type lossyDomain struct {
	*MemoryDomain
	dropSubmit     bool
	dropUndelegate bool
	forgotten      int
}

func (d *lossyDomain) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	result, err := d.MemoryDomain.Submit(ctx, req)
	if err == nil && d.dropSubmit {
		d.dropSubmit = false
		return nil, errReplyLost
	}
	return result, err
}

func (d *lossyDomain) Undelegate(ctx context.Context, auction core.AuctionHouse, bidder, bidAddress core.Pubkey) (*Release, error) {
	release, err := d.MemoryDomain.Undelegate(ctx, auction, bidder, bidAddress)
	if err == nil && d.dropUndelegate {
		d.dropUndelegate = false
		return nil, errReplyLost
	}
	return release, err
}

func (d *lossyDomain) Forget(ctx context.Context, auction, bidder core.Pubkey) error {
	d.forgotten++
	return d.MemoryDomain.Forget(ctx, auction, bidder)
}

func TestLedger_LostSubmitReplyKeepsEscrowWhole(t *testing.T) {
	domain := &lossyDomain{MemoryDomain: NewMemoryDomain(nil)}
	env := newTestEnvWithDomain(t, domain, nil)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	env.activeBid(t, auction, testBob)
	assert.NoError(t, l.SubmitSealedBid(ctx, testBob, auction, 500))

	// The domain raised alice to 1000 but the host never moved her funds
	domain.dropSubmit = true
	checkErrIs(t, l.SubmitSealedBid(ctx, testAlice, auction, 1000), errReplyLost)
	check.Equal(t, testFunds-testRent, env.balance(t, testAlice))
	check.Equal(t, uint64(500), env.vaultBalance(t, auction))

	// Committing the unfunded amount is refused and custody is kept
	checkErrIs(t, l.CommitBid(ctx, testAlice, auction), core.ErrInsufficientFunds)
	account, err := l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidActive, account.Status)
	check.Equal(t, uint64(0), account.Deposited)
	_, held := domain.Held(auction, testAlice)
	check.True(t, held)

	// The next raise escrows the whole amount, not just the increment
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 1010))
	check.Equal(t, testFunds-testRent-1010, env.balance(t, testAlice))
	check.Equal(t, uint64(1510), env.vaultBalance(t, auction))

	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	assert.NoError(t, l.CommitBid(ctx, testBob, auction))
	account, err = l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, uint64(1010), account.Amount)
	check.Equal(t, uint64(1010), account.Deposited)

	env.clock.Advance(testDuration)
	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testAlice))
	assert.NoError(t, l.SettleCommittedBid(ctx, auction, testBob))
	assert.NoError(t, l.FinalizeAuction(ctx, testAuthority, auction))
	assert.NoError(t, l.ClaimSellerProceeds(ctx, testAuthority, auction))
	assert.NoError(t, l.ClaimRefund(ctx, testBob, auction))

	check.Equal(t, uint64(1010), env.balance(t, testAuthority))
	check.Equal(t, testFunds-testRent, env.balance(t, testBob))
	check.Equal(t, uint64(0), env.vaultBalance(t, auction))
}

func TestLedger_LostCommitReplyCanBeRetried(t *testing.T) {
	domain := &lossyDomain{MemoryDomain: NewMemoryDomain(nil)}
	env := newTestEnvWithDomain(t, domain, nil)
	ctx := context.Background()
	l := env.ledger

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	assert.NoError(t, l.SubmitSealedBid(ctx, testAlice, auction, 150))

	domain.dropUndelegate = true
	checkErrIs(t, l.CommitBid(ctx, testAlice, auction), errReplyLost)

	account, err := l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidActive, account.Status)
	held, ok := domain.Held(auction, testAlice)
	check.True(t, ok)
	check.Equal(t, uint64(150), held.Amount)
	check.Equal(t, 0, domain.forgotten)

	assert.NoError(t, l.CommitBid(ctx, testAlice, auction))
	account, err = l.SealedBid(auction, testAlice)
	assert.NoError(t, err)
	check.Equal(t, core.BidCommitted, account.Status)
	check.Equal(t, uint64(150), account.Amount)
	check.Equal(t, 1, domain.forgotten)
	_, ok = domain.Held(auction, testAlice)
	check.False(t, ok)

	house, err := l.Auction(auction)
	assert.NoError(t, err)
	check.Equal(t, uint32(1), house.CommittedCount)
}

// closingDomain closes the ledger store right after a successful release,
// so the commit that follows cannot be written.
type closingDomain struct {
	*MemoryDomain
	store *Store
}

func (d *closingDomain) Undelegate(ctx context.Context, auction core.AuctionHouse, bidder, bidAddress core.Pubkey) (*Release, error) {
	release, err := d.MemoryDomain.Undelegate(ctx, auction, bidder, bidAddress)
	if err == nil {
		_ = d.store.db.Close()
	}
	return release, err
}

func TestLedger_FailedCommitWriteKeepsCustody(t *testing.T) {
	domain := &closingDomain{MemoryDomain: NewMemoryDomain(nil)}
	env := newTestEnvWithDomain(t, domain, nil)
	domain.store = env.ledger.store
	ctx := context.Background()

	auction := env.createAuction(t)
	env.activeBid(t, auction, testAlice)
	assert.NoError(t, env.ledger.SubmitSealedBid(ctx, testAlice, auction, 150))

	check.Error(t, env.ledger.CommitBid(ctx, testAlice, auction))

	held, ok := domain.Held(auction, testAlice)
	check.True(t, ok)
	check.Equal(t, uint64(150), held.Amount)
}

func TestLedger_AfterCommitHooksNeedDurableWrites(t *testing.T) {
	env := newTestEnv(t)
	l := env.ledger
	owner := IdentityFromName("carol")

	run := func(fail func(tx *Tx) error) (bool, error) {
		ran := false
		err := l.execute("hook_test", func(tx *Tx, _ int64) ([]core.Event, error) {
			if err := tx.put(walletKey(owner), &core.Wallet{Owner: owner, Balance: 1}); err != nil {
				return nil, err
			}
			tx.afterCommit(func() { ran = true })
			return nil, fail(tx)
		})
		return ran, err
	}

	ran, err := run(func(*Tx) error { return nil })
	assert.NoError(t, err)
	check.True(t, ran)

	refused := errors.New("refused")
	ran, err = run(func(*Tx) error { return refused })
	checkErrIs(t, err, refused)
	check.False(t, ran)

	ran, err = run(func(tx *Tx) error { return tx.store.db.Close() })
	check.Error(t, err)
	check.False(t, ran)
}

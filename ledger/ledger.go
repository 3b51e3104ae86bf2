// Package ledger is the host environment of the auction state machine: it
// derives account addresses, persists records, authorizes signers, hands
// Active bids to the private domain and executes every instruction
// atomically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/log"
	"github.com/cloudx-io/sealedbid/metric"
)

// Options tunes a Ledger. Zero values fall back to the defaults below.
type Options struct {
	ProgramID          string
	BidRent            uint64
	NotificationBuffer int
}

const (
	DefaultProgramID          = "sealedbid"
	defaultNotificationBuffer = 1024
)

// BidAccount is a sealed bid record as stored on the public ledger. While
// the bid is Active, Amount is the value as of delegation; the live amount
// is held by the private domain.
type BidAccount struct {
	Address core.Pubkey `json:"address" cbor:"address"`
	core.SealedBid
	Rent        uint64                           `json:"rent" cbor:"rent"`
	Attestation enclaveapi.AttestationCOSEBase64 `json:"attestation,omitempty" cbor:"attestation,omitempty"`
}

// Ledger executes instructions one at a time. Each instruction either
// commits every record it touched or none of them.
type Ledger struct {
	mu        sync.Mutex
	store     *Store
	domain    PrivateDomain
	clock     Clock
	notifier  *Notifier
	programID string
	bidRent   uint64
}

func New(store *Store, domain PrivateDomain, clock Clock, opts Options) *Ledger {
	if opts.ProgramID == "" {
		opts.ProgramID = DefaultProgramID
	}
	if opts.NotificationBuffer == 0 {
		opts.NotificationBuffer = defaultNotificationBuffer
	}
	return &Ledger{
		store:     store,
		domain:    domain,
		clock:     clock,
		notifier:  NewNotifier(opts.NotificationBuffer),
		programID: opts.ProgramID,
		bidRent:   opts.BidRent,
	}
}

func (l *Ledger) Notifier() *Notifier { return l.notifier }

func (l *Ledger) Clock() Clock { return l.clock }

func (l *Ledger) AuctionAddress(authority core.Pubkey, auctionID uint64) core.Pubkey {
	return AuctionAddress(l.programID, authority, auctionID)
}

func (l *Ledger) BidAddress(auction, bidder core.Pubkey) core.Pubkey {
	return BidAddress(l.programID, auction, bidder)
}

func (l *Ledger) VaultAddress(auction core.Pubkey) core.Pubkey {
	return VaultAddress(l.programID, auction)
}

func auctionKey(auction core.Pubkey) []byte {
	return append([]byte{prefixAuction}, auction[:]...)
}

func bidPrefix(auction core.Pubkey) []byte {
	return append([]byte{prefixBid}, auction[:]...)
}

func bidKey(auction, bidder core.Pubkey) []byte {
	return append(bidPrefix(auction), bidder[:]...)
}

func vaultKey(auction core.Pubkey) []byte {
	return append([]byte{prefixVault}, auction[:]...)
}

func walletKey(owner core.Pubkey) []byte {
	return append([]byte{prefixWallet}, owner[:]...)
}

// execute runs fn against a fresh transaction under the instruction lock and
// commits it only if fn succeeds. Hooks queued with afterCommit run after the
// lock is released.
func (l *Ledger) execute(name string, fn func(tx *Tx, now int64) ([]core.Event, error)) error {
	start := time.Now()

	l.mu.Lock()
	now := l.clock.Now()
	tx := l.store.begin()
	events, err := fn(tx, now)
	if err == nil {
		err = tx.commit()
		if err != nil {
			log.Errorf("%s: %v", name, err)
		}
	}
	l.mu.Unlock()

	metric.CollectInstruction(name, start, err)
	if err != nil {
		log.Debugf("%s rejected: %v", name, err)
		return err
	}
	for _, fn := range tx.after {
		fn()
	}
	l.notifier.publish(now, events)
	return nil
}

func loadAuction(tx *Tx, address core.Pubkey) (*core.AuctionHouse, error) {
	var auction core.AuctionHouse
	if err := tx.get(auctionKey(address), &auction); err != nil {
		return nil, notFound(err)
	}
	return &auction, nil
}

func loadBid(tx *Tx, auction, bidder core.Pubkey) (*BidAccount, error) {
	var bid BidAccount
	if err := tx.get(bidKey(auction, bidder), &bid); err != nil {
		return nil, notFound(err)
	}
	return &bid, nil
}

func loadVault(tx *Tx, auction core.Pubkey) (*core.Vault, error) {
	var vault core.Vault
	if err := tx.get(vaultKey(auction), &vault); err != nil {
		return nil, notFound(err)
	}
	return &vault, nil
}

// loadWallet returns a zero balance for owners that were never funded.
func loadWallet(tx *Tx, owner core.Pubkey) (*core.Wallet, error) {
	wallet := core.Wallet{Owner: owner}
	err := tx.get(walletKey(owner), &wallet)
	if err != nil && !errors.Is(err, errRecordNotFound) {
		return nil, err
	}
	return &wallet, nil
}

func notFound(err error) error {
	if errors.Is(err, errRecordNotFound) {
		return core.ErrAccountNotFound
	}
	return err
}

func requireAuthority(auction *core.AuctionHouse, signer core.Pubkey) error {
	if auction.Authority != signer {
		return core.ErrUnauthorized
	}
	return nil
}

// Airdrop credits amount to owner's wallet.
func (l *Ledger) Airdrop(_ context.Context, owner core.Pubkey, amount uint64) error {
	return l.execute("airdrop", func(tx *Tx, _ int64) ([]core.Event, error) {
		wallet, err := loadWallet(tx, owner)
		if err != nil {
			return nil, err
		}
		if wallet.Balance > ^uint64(0)-amount {
			return nil, core.ErrMathOverflow
		}
		wallet.Balance += amount
		return nil, tx.put(walletKey(owner), wallet)
	})
}

// CreateAuction opens a new auction owned by authority along with its empty
// vault, and returns the auction address.
func (l *Ledger) CreateAuction(_ context.Context, authority core.Pubkey, auctionID, minBid, minIncrement uint64, duration int64) (core.Pubkey, error) {
	address := l.AuctionAddress(authority, auctionID)
	err := l.execute("create_auction", func(tx *Tx, now int64) ([]core.Event, error) {
		exists, err := tx.exists(auctionKey(address))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, core.ErrAccountExists
		}

		auction, created, err := core.CreateAuction(address, authority, auctionID, minBid, minIncrement, duration, now)
		if err != nil {
			return nil, err
		}
		if err := tx.put(auctionKey(address), auction); err != nil {
			return nil, err
		}
		if err := tx.put(vaultKey(address), &core.Vault{Auction: address}); err != nil {
			return nil, err
		}
		return []core.Event{created}, nil
	})
	if err != nil {
		return core.Pubkey{}, err
	}
	return address, nil
}

// InitializeSealedBid registers signer in auction and charges the bid
// account rent. Returns the bid address.
func (l *Ledger) InitializeSealedBid(_ context.Context, signer, auctionAddr core.Pubkey) (core.Pubkey, error) {
	err := l.execute("initialize_sealed_bid", func(tx *Tx, _ int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		exists, err := tx.exists(bidKey(auctionAddr, signer))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, core.ErrAccountExists
		}
		wallet, err := loadWallet(tx, signer)
		if err != nil {
			return nil, err
		}
		if wallet.Balance < l.bidRent {
			return nil, core.ErrInsufficientFunds
		}

		bid, err := core.RegisterBid(auction, signer)
		if err != nil {
			return nil, err
		}
		wallet.Balance -= l.bidRent

		account := &BidAccount{
			Address:   l.BidAddress(auctionAddr, signer),
			SealedBid: *bid,
			Rent:      l.bidRent,
		}
		if err := tx.put(auctionKey(auctionAddr), auction); err != nil {
			return nil, err
		}
		if err := tx.put(bidKey(auctionAddr, signer), account); err != nil {
			return nil, err
		}
		return nil, tx.put(walletKey(signer), wallet)
	})
	if err != nil {
		return core.Pubkey{}, err
	}
	return l.BidAddress(auctionAddr, signer), nil
}

// DelegateBid moves signer's Ready bid into the private domain.
func (l *Ledger) DelegateBid(ctx context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("delegate_bid", func(tx *Tx, _ int64) ([]core.Event, error) {
		if _, err := loadAuction(tx, auctionAddr); err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, signer)
		if err != nil {
			return nil, err
		}
		if err := core.Delegate(&account.SealedBid); err != nil {
			return nil, err
		}
		if err := tx.put(bidKey(auctionAddr, signer), account); err != nil {
			return nil, err
		}
		if err := l.domain.Delegate(ctx, account.SealedBid); err != nil {
			return nil, fmt.Errorf("delegate to private domain: %w", err)
		}
		return nil, nil
	})
}

// SubmitSealedBid raises signer's delegated bid to amount.
func (l *Ledger) SubmitSealedBid(ctx context.Context, signer, auctionAddr core.Pubkey, amount uint64) error {
	return l.submit(ctx, "submit_sealed_bid", signer, auctionAddr, amount, nil)
}

// SubmitEncryptedBid is SubmitSealedBid with the amount sealed to the
// enclave key, so the host never sees it.
func (l *Ledger) SubmitEncryptedBid(ctx context.Context, signer, auctionAddr core.Pubkey, sealed *enclaveapi.SealedAmount) error {
	if sealed == nil {
		return fmt.Errorf("sealed amount is required")
	}
	return l.submit(ctx, "submit_encrypted_bid", signer, auctionAddr, 0, sealed)
}

func (l *Ledger) submit(ctx context.Context, name string, signer, auctionAddr core.Pubkey, amount uint64, sealed *enclaveapi.SealedAmount) error {
	return l.execute(name, func(tx *Tx, now int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, signer)
		if err != nil {
			return nil, err
		}
		vault, err := loadVault(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		wallet, err := loadWallet(tx, signer)
		if err != nil {
			return nil, err
		}

		if account.Status != core.BidActive {
			// Reports the same error, in the same order, the private domain
			// would have for a bid it does not hold.
			probe := amount
			if sealed != nil {
				probe = auction.MinBid
			}
			if _, err := core.ValidateSubmit(auction, &account.SealedBid, probe, now); err != nil {
				return nil, err
			}
			return nil, core.ErrAccountNotDelegated
		}

		result, err := l.domain.Submit(ctx, SubmitRequest{
			Auction:       *auction,
			Bidder:        signer,
			Amount:        amount,
			Sealed:        sealed,
			Deposited:     account.Deposited,
			WalletBalance: wallet.Balance,
			VaultBalance:  vault.Balance,
			Now:           now,
		})
		if err != nil {
			return nil, err
		}

		if result.TopUp > 0 {
			if err := vault.Deposit(wallet, result.TopUp); err != nil {
				return nil, err
			}
			deposited := account.Deposited + result.TopUp
			if deposited < account.Deposited {
				return nil, core.ErrMathOverflow
			}
			account.Deposited = deposited
			if err := tx.put(bidKey(auctionAddr, signer), account); err != nil {
				return nil, err
			}
			if err := tx.put(vaultKey(auctionAddr), vault); err != nil {
				return nil, err
			}
			if err := tx.put(walletKey(signer), wallet); err != nil {
				return nil, err
			}
			topUp := float64(result.TopUp)
			tx.afterCommit(func() { metric.EscrowDeposited.Add(topUp) })
		}

		return []core.Event{&core.BidSubmitted{
			Auction: auctionAddr,
			Bidder:  signer,
			Amount:  result.Amount,
		}}, nil
	})
}

// CommitBid releases signer's bid from the private domain and freezes it.
// The domain keeps its copy until the commit is durable, so a commit that
// fails anywhere after the release can simply be retried.
func (l *Ledger) CommitBid(ctx context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("commit_bid", func(tx *Tx, _ int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, signer)
		if err != nil {
			return nil, err
		}
		if account.Status != core.BidActive {
			return nil, core.ErrAccountNotDelegated
		}

		release, err := l.domain.Undelegate(ctx, *auction, signer, account.Address)
		if err != nil {
			return nil, err
		}
		released := release.Bid
		if released.Auction != auctionAddr || released.Bidder != signer {
			return nil, core.ErrBidAuctionMismatch
		}
		// Escrow, refund and settlement state are only ever set publicly.
		released.Deposited = account.Deposited
		released.Settled = account.Settled
		released.RefundClaimed = account.RefundClaimed
		if released.Amount > released.Deposited {
			log.Warnf("commit %s: amount %d exceeds escrow %d", account.Address.Short(), released.Amount, released.Deposited)
			return nil, core.ErrInsufficientFunds
		}

		committed, err := core.Commit(auction, &released)
		if err != nil {
			return nil, err
		}

		account.SealedBid = released
		account.Attestation = release.Attestation
		if err := tx.put(auctionKey(auctionAddr), auction); err != nil {
			return nil, err
		}
		if err := tx.put(bidKey(auctionAddr, signer), account); err != nil {
			return nil, err
		}
		tx.afterCommit(func() {
			if err := l.domain.Forget(ctx, auctionAddr, signer); err != nil {
				log.Warnf("forget committed bid %s: %v", account.Address.Short(), err)
			}
		})
		return []core.Event{committed}, nil
	})
}

// SettleCommittedBid folds one committed bid into the auction result. Anyone
// may call it once the auction has ended.
func (l *Ledger) SettleCommittedBid(_ context.Context, auctionAddr, bidder core.Pubkey) error {
	return l.execute("settle_committed_bid", func(tx *Tx, now int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, bidder)
		if err != nil {
			return nil, err
		}
		settled, err := core.Settle(auction, &account.SealedBid, now)
		if err != nil {
			return nil, err
		}
		if err := tx.put(auctionKey(auctionAddr), auction); err != nil {
			return nil, err
		}
		if err := tx.put(bidKey(auctionAddr, bidder), account); err != nil {
			return nil, err
		}
		return []core.Event{settled}, nil
	})
}

// FinalizeAuction locks the result. Only the auction authority may call it.
func (l *Ledger) FinalizeAuction(_ context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("finalize_auction", func(tx *Tx, now int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		if err := requireAuthority(auction, signer); err != nil {
			return nil, err
		}
		finalized, err := core.Finalize(auction, now)
		if err != nil {
			return nil, err
		}
		if err := tx.put(auctionKey(auctionAddr), auction); err != nil {
			return nil, err
		}
		return []core.Event{finalized}, nil
	})
}

// ClaimSellerProceeds pays the winning amount to the authority.
func (l *Ledger) ClaimSellerProceeds(_ context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("claim_seller_proceeds", func(tx *Tx, _ int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		if err := requireAuthority(auction, signer); err != nil {
			return nil, err
		}
		vault, err := loadVault(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		seller, err := loadWallet(tx, signer)
		if err != nil {
			return nil, err
		}
		claimed, err := core.ClaimSellerProceeds(auction, vault, seller)
		if err != nil {
			return nil, err
		}
		if err := tx.put(auctionKey(auctionAddr), auction); err != nil {
			return nil, err
		}
		if err := tx.put(vaultKey(auctionAddr), vault); err != nil {
			return nil, err
		}
		if err := tx.put(walletKey(signer), seller); err != nil {
			return nil, err
		}
		tx.afterCommit(func() { metric.EscrowPaidOut.Add(float64(claimed.Amount)) })
		return []core.Event{claimed}, nil
	})
}

// ClaimRefund returns a losing bidder's escrow.
func (l *Ledger) ClaimRefund(_ context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("claim_refund", func(tx *Tx, _ int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, signer)
		if err != nil {
			return nil, err
		}
		vault, err := loadVault(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		wallet, err := loadWallet(tx, signer)
		if err != nil {
			return nil, err
		}
		refund, err := core.ClaimRefund(auction, &account.SealedBid, vault, wallet)
		if err != nil {
			return nil, err
		}
		if err := tx.put(bidKey(auctionAddr, signer), account); err != nil {
			return nil, err
		}
		if err := tx.put(vaultKey(auctionAddr), vault); err != nil {
			return nil, err
		}
		if err := tx.put(walletKey(signer), wallet); err != nil {
			return nil, err
		}
		tx.afterCommit(func() { metric.EscrowPaidOut.Add(float64(refund.Amount)) })
		return []core.Event{refund}, nil
	})
}

// CloseSealedBid deletes signer's bid account once its funds are accounted
// for and returns the rent it held.
func (l *Ledger) CloseSealedBid(_ context.Context, signer, auctionAddr core.Pubkey) error {
	return l.execute("close_sealed_bid", func(tx *Tx, _ int64) ([]core.Event, error) {
		auction, err := loadAuction(tx, auctionAddr)
		if err != nil {
			return nil, err
		}
		account, err := loadBid(tx, auctionAddr, signer)
		if err != nil {
			return nil, err
		}
		if err := core.AuthorizeClose(auction, &account.SealedBid); err != nil {
			return nil, err
		}
		wallet, err := loadWallet(tx, signer)
		if err != nil {
			return nil, err
		}
		if wallet.Balance > ^uint64(0)-account.Rent {
			return nil, core.ErrMathOverflow
		}
		wallet.Balance += account.Rent
		tx.delete(bidKey(auctionAddr, signer))
		return nil, tx.put(walletKey(signer), wallet)
	})
}

package core

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a rejected operation. Codes start at 6000 so they line
// up with the program error numbering clients already know.
type ErrorCode uint32

const (
	AuctionActive ErrorCode = 6000 + iota
	AuctionEnded
	AuctionFinalized
	AuctionNotFinalized
	BidIncrementTooSmall
	BidBelowMinimum
	CannotDelegate
	AccountNotDelegated
	BidNotCommitted
	BidAlreadySettled
	UnsettledCommittedBids
	BidAuctionMismatch
	InvalidDuration
	InvalidMinBid
	MathOverflow
	ProceedsAlreadyClaimed
	NoWinningBid
	WinnerNoRefund
	RefundAlreadyClaimed
	NoRefundAvailable
	InsufficientVaultBalance
	CloseNotAllowed
	InsufficientFunds
	Unauthorized
	AccountNotFound
	AccountExists
)

var codeNames = map[ErrorCode]string{
	AuctionActive:            "AuctionActive",
	AuctionEnded:             "AuctionEnded",
	AuctionFinalized:         "AuctionFinalized",
	AuctionNotFinalized:      "AuctionNotFinalized",
	BidIncrementTooSmall:     "BidIncrementTooSmall",
	BidBelowMinimum:          "BidBelowMinimum",
	CannotDelegate:           "CannotDelegate",
	AccountNotDelegated:      "AccountNotDelegated",
	BidNotCommitted:          "BidNotCommitted",
	BidAlreadySettled:        "BidAlreadySettled",
	UnsettledCommittedBids:   "UnsettledCommittedBids",
	BidAuctionMismatch:       "BidAuctionMismatch",
	InvalidDuration:          "InvalidDuration",
	InvalidMinBid:            "InvalidMinBid",
	MathOverflow:             "MathOverflow",
	ProceedsAlreadyClaimed:   "ProceedsAlreadyClaimed",
	NoWinningBid:             "NoWinningBid",
	WinnerNoRefund:           "WinnerNoRefund",
	RefundAlreadyClaimed:     "RefundAlreadyClaimed",
	NoRefundAvailable:        "NoRefundAvailable",
	InsufficientVaultBalance: "InsufficientVaultBalance",
	CloseNotAllowed:          "CloseNotAllowed",
	InsufficientFunds:        "InsufficientFunds",
	Unauthorized:             "Unauthorized",
	AccountNotFound:          "AccountNotFound",
	AccountExists:            "AccountExists",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// AuctionError is the error returned by every rejected operation. A rejected
// operation never leaves a partial mutation behind.
type AuctionError struct {
	Code ErrorCode
	Msg  string
}

func (e *AuctionError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, uint32(e.Code), e.Msg)
}

// Is matches any AuctionError carrying the same code, so wrapped or
// re-created errors still compare equal to the exported sentinels.
func (e *AuctionError) Is(target error) bool {
	t, ok := target.(*AuctionError)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, msg string) *AuctionError {
	return &AuctionError{Code: code, Msg: msg}
}

var (
	ErrAuctionActive            = newError(AuctionActive, "Auction is still active")
	ErrAuctionEnded             = newError(AuctionEnded, "Auction has ended")
	ErrAuctionFinalized         = newError(AuctionFinalized, "Auction already finalized")
	ErrAuctionNotFinalized      = newError(AuctionNotFinalized, "Auction not finalized")
	ErrBidIncrementTooSmall     = newError(BidIncrementTooSmall, "Bid increment is too small")
	ErrBidBelowMinimum          = newError(BidBelowMinimum, "Bid is below auction minimum")
	ErrCannotDelegate           = newError(CannotDelegate, "Cannot delegate this account in its current state")
	ErrAccountNotDelegated      = newError(AccountNotDelegated, "Bid account is not delegated")
	ErrBidNotCommitted          = newError(BidNotCommitted, "Bid account is not committed")
	ErrBidAlreadySettled        = newError(BidAlreadySettled, "Bid account has already been settled")
	ErrUnsettledCommittedBids   = newError(UnsettledCommittedBids, "There are unsettled committed bids")
	ErrBidAuctionMismatch       = newError(BidAuctionMismatch, "Bid account is linked to a different auction")
	ErrInvalidDuration          = newError(InvalidDuration, "Duration must be greater than zero")
	ErrInvalidMinBid            = newError(InvalidMinBid, "Minimum bid must be greater than zero")
	ErrMathOverflow             = newError(MathOverflow, "Integer overflow")
	ErrProceedsAlreadyClaimed   = newError(ProceedsAlreadyClaimed, "Seller proceeds have already been claimed")
	ErrNoWinningBid             = newError(NoWinningBid, "No winning bid in this auction")
	ErrWinnerNoRefund           = newError(WinnerNoRefund, "Winner cannot claim refund")
	ErrRefundAlreadyClaimed     = newError(RefundAlreadyClaimed, "Refund already claimed")
	ErrNoRefundAvailable        = newError(NoRefundAvailable, "No refundable amount available")
	ErrInsufficientVaultBalance = newError(InsufficientVaultBalance, "Vault balance is insufficient")
	ErrCloseNotAllowed          = newError(CloseNotAllowed, "Bid account cannot be closed yet")
	ErrInsufficientFunds        = newError(InsufficientFunds, "Signer balance is insufficient")
	ErrUnauthorized             = newError(Unauthorized, "Signer does not own this account")
	ErrAccountNotFound          = newError(AccountNotFound, "Account does not exist")
	ErrAccountExists            = newError(AccountExists, "Account already exists")
)

// FromCode rebuilds an AuctionError received over the wire. The result
// matches the sentinel with the same code under errors.Is.
func FromCode(code ErrorCode, msg string) *AuctionError {
	if msg == "" {
		msg = code.String()
	}
	return &AuctionError{Code: code, Msg: msg}
}

// CodeOf extracts the ErrorCode from err. ok is false when err does not wrap
// an AuctionError.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var ae *AuctionError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return 0, false
}

// Package enclaveclient is the host side of the enclave protocol. Client
// implements ledger.PrivateDomain by forwarding every call over vsock.
package enclaveclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/ledger"
	"github.com/cloudx-io/sealedbid/log"
	"github.com/cloudx-io/sealedbid/metric"
)

// ErrCommitMismatch is returned when the attested commitment does not match
// the released amount.
var ErrCommitMismatch = errors.New("attested commitment does not match released bid")

// Dialer opens one connection per request.
type Dialer func(ctx context.Context) (net.Conn, error)

// VsockDialer connects to the enclave at cid:port.
func VsockDialer(cid, port uint32) Dialer {
	return func(context.Context) (net.Conn, error) {
		return vsock.Dial(cid, port, nil)
	}
}

type Client struct {
	dial    Dialer
	timeout time.Duration
}

var _ ledger.PrivateDomain = (*Client)(nil)

func New(dial Dialer, timeout time.Duration) *Client {
	return &Client{dial: dial, timeout: timeout}
}

type response interface {
	Err() error
}

// call performs one request/response exchange. Only a response that arrived
// and decoded is reported as a rejection; transport failures are wrapped.
func (c *Client) call(ctx context.Context, reqType string, req, resp any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			if _, ok := core.CodeOf(err); ok {
				result = "rejected"
			}
		}
		metric.EnclaveRequests.WithLabelValues(reqType, result).Inc()
		log.Debugf("enclave %s: %s in %s", reqType, result, time.Since(start))
	}()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial enclave: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set enclave deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send %s: %w", reqType, err)
	}
	if err := json.NewDecoder(conn).Decode(resp); err != nil {
		return fmt.Errorf("read %s response: %w", reqType, err)
	}
	if r, ok := resp.(response); ok {
		return r.Err()
	}
	return nil
}

// Ping checks that the enclave is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var resp enclaveapi.PingResponse
	err := c.call(ctx, enclaveapi.TypePing, map[string]string{"type": enclaveapi.TypePing}, &resp)
	if err != nil {
		return err
	}
	if resp.Type != enclaveapi.TypePong {
		return fmt.Errorf("unexpected ping reply %q", resp.Type)
	}
	return nil
}

// PublicKey fetches the sealing key with its attestation. Callers verify
// the attestation before sealing anything to the key.
func (c *Client) PublicKey(ctx context.Context) (*enclaveapi.KeyResponse, error) {
	var resp enclaveapi.KeyResponse
	if err := c.call(ctx, enclaveapi.TypeKeyRequest, map[string]string{"type": enclaveapi.TypeKeyRequest}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Delegate(ctx context.Context, bid core.SealedBid) error {
	var resp enclaveapi.Response
	return c.call(ctx, enclaveapi.TypeDelegateRequest, &enclaveapi.DelegateRequest{
		Type: enclaveapi.TypeDelegateRequest,
		Bid:  bid,
	}, &resp)
}

// Submit forwards the amount to the enclave. The result never carries the
// amount; the enclave keeps it private.
func (c *Client) Submit(ctx context.Context, req ledger.SubmitRequest) (*ledger.SubmitResult, error) {
	var resp enclaveapi.SubmitResponse
	err := c.call(ctx, enclaveapi.TypeSubmitRequest, &enclaveapi.SubmitRequest{
		Type:          enclaveapi.TypeSubmitRequest,
		Auction:       req.Auction,
		Bidder:        req.Bidder,
		Amount:        req.Amount,
		SealedAmount:  req.Sealed,
		Deposited:     req.Deposited,
		WalletBalance: req.WalletBalance,
		VaultBalance:  req.VaultBalance,
		Now:           req.Now,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &ledger.SubmitResult{TopUp: resp.TopUp}, nil
}

func (c *Client) Undelegate(ctx context.Context, auction core.AuctionHouse, bidder, bidAddress core.Pubkey) (*ledger.Release, error) {
	var resp enclaveapi.UndelegateResponse
	err := c.call(ctx, enclaveapi.TypeUndelegateRequest, &enclaveapi.UndelegateRequest{
		Type:       enclaveapi.TypeUndelegateRequest,
		Auction:    auction,
		Bidder:     bidder,
		BidAddress: bidAddress,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Bid == nil {
		return nil, fmt.Errorf("enclave released no bid for %s", bidAddress.Short())
	}
	if resp.AttestationCOSEBase64 != "" {
		if err := checkCommitment(resp.AttestationCOSEBase64, bidAddress, *resp.Bid); err != nil {
			return nil, err
		}
	}
	return &ledger.Release{Bid: *resp.Bid, Attestation: resp.AttestationCOSEBase64}, nil
}

func (c *Client) Forget(ctx context.Context, auction, bidder core.Pubkey) error {
	var resp enclaveapi.Response
	return c.call(ctx, enclaveapi.TypeForgetRequest, &enclaveapi.ForgetRequest{
		Type:    enclaveapi.TypeForgetRequest,
		Auction: auction,
		Bidder:  bidder,
	}, &resp)
}

// checkCommitment binds the attested commitment to the released entry. The
// attestation signature itself is verified by the validation package.
func checkCommitment(attestation enclaveapi.AttestationCOSEBase64, bidAddress core.Pubkey, bid core.SealedBid) error {
	cose, err := attestation.Decode()
	if err != nil {
		return err
	}
	_, userDataBytes, err := cose.ParseAttestationDoc()
	if err != nil {
		return fmt.Errorf("parse commit attestation: %w", err)
	}
	var userData enclaveapi.CommitAttestationUserData
	if err := json.Unmarshal(userDataBytes, &userData); err != nil {
		return fmt.Errorf("decode commit attestation user data: %w", err)
	}

	switch {
	case userData.BidAddress != bidAddress,
		userData.Auction != bid.Auction,
		userData.Bidder != bid.Bidder,
		userData.CommitHash != core.ComputeCommitHash(bidAddress, bid.Amount, userData.HashNonce):
		return ErrCommitMismatch
	}
	return nil
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/log"
	"github.com/cloudx-io/sealedbid/metric"
)

// Cranker drives ended auctions to completion. Settlement is permissionless,
// so it settles every committed bid it finds; it finalizes only auctions
// whose authority is its operator.
type Cranker struct {
	ledger   *Ledger
	interval time.Duration
	operator core.Pubkey
}

// CrankStats reports what one pass did.
type CrankStats struct {
	Settled   int
	Finalized int
}

// NewCranker creates a crank. A zero operator only settles.
func NewCranker(l *Ledger, interval time.Duration, operator core.Pubkey) *Cranker {
	return &Cranker{ledger: l, interval: interval, operator: operator}
}

// Run cranks every interval until ctx is done.
func (c *Cranker) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Infof("settlement crank started (interval: %s, operator: %s)", c.interval, c.operatorName())
	for {
		select {
		case <-ctx.Done():
			log.Infof("settlement crank stopped")
			return ctx.Err()
		case <-ticker.C:
			stats, err := c.Crank(ctx)
			if err != nil {
				log.Errorf("crank pass failed: %v", err)
				continue
			}
			if stats.Settled > 0 || stats.Finalized > 0 {
				log.Infof("crank pass: settled=%d finalized=%d", stats.Settled, stats.Finalized)
			}
		}
	}
}

func (c *Cranker) operatorName() string {
	if c.operator.IsZero() {
		return "none"
	}
	return c.operator.Short()
}

// Crank makes one pass over all auctions. Auction rule rejections (a bid
// settled concurrently, a barrier not yet met) are expected and skipped;
// anything else aborts the pass.
func (c *Cranker) Crank(ctx context.Context) (CrankStats, error) {
	var stats CrankStats

	auctions, err := c.ledger.Auctions()
	if err != nil {
		return stats, err
	}
	now := c.ledger.Clock().Now()

	for i := range auctions {
		auction := &auctions[i]
		if auction.Finalized || !auction.Ended(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		bids, err := c.ledger.Bids(auction.Address)
		if err != nil {
			return stats, err
		}
		for _, bid := range bids {
			if bid.Status != core.BidCommitted || bid.Settled {
				continue
			}
			err := c.ledger.SettleCommittedBid(ctx, auction.Address, bid.Bidder)
			if err == nil {
				stats.Settled++
				metric.CrankSettled.Inc()
				continue
			}
			if !isRuleRejection(err) {
				return stats, err
			}
		}

		if c.operator.IsZero() || auction.Authority != c.operator {
			continue
		}
		err = c.ledger.FinalizeAuction(ctx, c.operator, auction.Address)
		switch {
		case err == nil:
			stats.Finalized++
			metric.CrankFinalized.Inc()
		case errors.Is(err, core.ErrUnsettledCommittedBids), isRuleRejection(err):
			// Retried on the next pass.
		default:
			return stats, err
		}
	}
	return stats, nil
}

func isRuleRejection(err error) bool {
	_, ok := core.CodeOf(err)
	return ok
}

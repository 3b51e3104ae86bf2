package main

import (
	"context"
	"fmt"

	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
)

const simulatedDuration int64 = 3600

// cmdSimulate plays a two bidder auction against a throwaway in-memory
// ledger and prints every notification it emits.
func cmdSimulate(c *cli.Context) error {
	store, err := ledger.OpenStore("", 64)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer store.Close()

	clock := ledger.NewManualClock(0)
	l := ledger.New(store, ledger.NewMemoryDomain(nil), clock, ledger.Options{})
	cancel := l.Notifier().Subscribe(func(note ledger.Notification) {
		fmt.Fprintf(c.App.Writer, "t=%-5d %s\n", note.At, note.Kind)
	})
	defer cancel()

	seller := ledger.IdentityFromName(c.String(flagSeller))
	bidders := []core.Pubkey{ledger.IdentityFromName("alice"), ledger.IdentityFromName("bob")}
	unit := func(v uint64) uint64 { return v * 1_000_000_000 }

	ctx := c.Context
	steps := []func() error{
		func() error { return l.Airdrop(ctx, bidders[0], unit(1000)) },
		func() error { return l.Airdrop(ctx, bidders[1], unit(1000)) },
	}
	var auction core.Pubkey
	steps = append(steps, func() (err error) {
		auction, err = l.CreateAuction(ctx, seller, 1, unit(100), unit(10), simulatedDuration)
		return err
	})
	for _, bidder := range bidders {
		bidder := bidder
		steps = append(steps,
			func() error { _, err := l.InitializeSealedBid(ctx, bidder, auction); return err },
			func() error { return l.DelegateBid(ctx, bidder, auction) },
		)
	}
	steps = append(steps,
		func() error { return l.SubmitSealedBid(ctx, bidders[0], auction, unit(100)) },
		func() error { return l.SubmitSealedBid(ctx, bidders[1], auction, unit(200)) },
		func() error { return l.SubmitSealedBid(ctx, bidders[0], auction, unit(150)) },
		func() error { clock.Advance(simulatedDuration); return nil },
		func() error { return l.CommitBid(ctx, bidders[0], auction) },
		func() error { return l.CommitBid(ctx, bidders[1], auction) },
		func() error { return crankOnce(ctx, l, seller) },
		func() error { return l.ClaimSellerProceeds(ctx, seller, auction) },
		func() error { return l.ClaimRefund(ctx, bidders[0], auction) },
		func() error { return l.CloseSealedBid(ctx, bidders[0], auction) },
		func() error { return l.CloseSealedBid(ctx, bidders[1], auction) },
	)
	for i, step := range steps {
		if err := step(); err != nil {
			return tracerr.Wrap(fmt.Errorf("step %d: %w", i+1, err))
		}
	}

	result, err := l.Auction(auction)
	if err != nil {
		return tracerr.Wrap(err)
	}
	fmt.Fprintf(c.App.Writer, "winner=%s final=%s\n", result.Winner.Short(), core.FormatAmount(result.HighestBid))
	for _, owner := range append([]core.Pubkey{seller}, bidders...) {
		if err := printBalance(c, &node{ledger: l}, owner); err != nil {
			return err
		}
	}
	return nil
}

func crankOnce(ctx context.Context, l *ledger.Ledger, operator core.Pubkey) error {
	stats, err := ledger.NewCranker(l, 0, operator).Crank(ctx)
	if err != nil {
		return err
	}
	if stats.Finalized != 1 {
		return fmt.Errorf("auction not finalized after crank (settled %d)", stats.Settled)
	}
	return nil
}

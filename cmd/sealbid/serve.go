package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/sealedbid/api"
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
	"github.com/cloudx-io/sealedbid/log"
)

// cmdServe runs the gateway and, when enabled, the settlement crank until
// interrupted.
func cmdServe(c *cli.Context, n *node) error {
	cfg := n.cfg
	if n.enclave != nil {
		if err := n.enclave.Ping(c.Context); err != nil {
			return tracerr.Wrap(err)
		}
		log.Infof("enclave reachable at cid %d port %d", cfg.Domain.EnclaveCID, cfg.Domain.EnclavePort)
	}

	handler, err := api.New(n.ledger, cfg.API.AllowedOrigins)
	if err != nil {
		return tracerr.Wrap(err)
	}
	server := &http.Server{
		Addr:         cfg.API.Address,
		Handler:      handler,
		ReadTimeout:  cfg.API.ReadTimeout.Duration,
		WriteTimeout: cfg.API.WriteTimeout.Duration,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("gateway listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return tracerr.Wrap(err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.WriteTimeout.Duration)
		defer cancel()
		return tracerr.Wrap(server.Shutdown(shutdownCtx))
	})
	if cfg.Crank.Enabled {
		var operator core.Pubkey
		if cfg.Crank.Operator != "" {
			if operator, err = parseIdentity(cfg.Crank.Operator); err != nil {
				return err
			}
		}
		cranker := ledger.NewCranker(n.ledger, cfg.Crank.Interval.Duration, operator)
		g.Go(func() error {
			if err := cranker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return tracerr.Wrap(err)
			}
			return nil
		})
	}

	err = g.Wait()
	log.Infof("node stopped")
	return err
}

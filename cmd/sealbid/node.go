package main

import (
	"fmt"
	"strings"

	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/sealedbid/config"
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveclient"
	"github.com/cloudx-io/sealedbid/ledger"
)

// node is a ledger opened for one command.
type node struct {
	cfg     *config.Node
	store   *ledger.Store
	ledger  *ledger.Ledger
	enclave *enclaveclient.Client
}

// newDomain builds the private domain the configuration selects. The
// memory domain only holds delegated bids for the life of the process.
var newDomain = func(cfg *config.Node) (ledger.PrivateDomain, *enclaveclient.Client, error) {
	switch cfg.Domain.Mode {
	case config.DomainEnclave:
		client := enclaveclient.New(
			enclaveclient.VsockDialer(cfg.Domain.EnclaveCID, cfg.Domain.EnclavePort),
			cfg.Domain.Timeout.Duration)
		return client, client, nil
	case config.DomainMemory:
		return ledger.NewMemoryDomain(nil), nil, nil
	default:
		return nil, nil, tracerr.Wrap(fmt.Errorf("invalid domain mode %q", cfg.Domain.Mode))
	}
}

var newClock = func() ledger.Clock { return ledger.SystemClock{} }

func loadConfig(c *cli.Context) (*config.Node, error) {
	cfg, err := config.LoadNode(c.String(flagCfg))
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if data := c.String(flagData); data != "" {
		cfg.Ledger.Path = data
	}
	return cfg, nil
}

func openNode(c *cli.Context) (*node, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	store, err := ledger.OpenStore(cfg.Ledger.Path, cfg.Ledger.CacheSize)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	domain, client, err := newDomain(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	l := ledger.New(store, domain, newClock(), ledger.Options{
		ProgramID:          cfg.Ledger.ProgramID,
		BidRent:            cfg.Ledger.BidRent,
		NotificationBuffer: cfg.Ledger.NotificationBuffer,
	})
	return &node{cfg: cfg, store: store, ledger: l, enclave: client}, nil
}

func (n *node) Close() error {
	return n.store.Close()
}

// parseIdentity accepts either a hex pubkey or a name, which is hashed into
// a development identity.
func parseIdentity(s string) (core.Pubkey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Pubkey{}, tracerr.Wrap(fmt.Errorf("empty identity"))
	}
	if len(s) == 2*core.PubkeyLength {
		if pk, err := core.ParsePubkey(s); err == nil {
			return pk, nil
		}
	}
	return ledger.IdentityFromName(s), nil
}

func identityFlag(c *cli.Context, name string) (core.Pubkey, error) {
	pk, err := parseIdentity(c.String(name))
	if err != nil {
		return core.Pubkey{}, tracerr.Wrap(fmt.Errorf("flag %q: %w", name, err))
	}
	return pk, nil
}

func auctionFlag(c *cli.Context) (core.Pubkey, error) {
	pk, err := core.ParsePubkey(c.String(flagAuction))
	if err != nil {
		return core.Pubkey{}, tracerr.Wrap(fmt.Errorf("flag %q: %w", flagAuction, err))
	}
	return pk, nil
}

func amountFlag(c *cli.Context, name string) (uint64, error) {
	amount, err := core.ParseAmount(c.String(name))
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return amount, nil
}

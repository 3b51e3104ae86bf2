package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/sealedbid/config"
	"github.com/cloudx-io/sealedbid/log"
)

const (
	flagCfg          = "cfg"
	flagData         = "data"
	flagSigner       = "signer"
	flagOwner        = "owner"
	flagBidder       = "bidder"
	flagOperator     = "operator"
	flagSeller       = "seller"
	flagAuction      = "auction"
	flagAmount       = "amount"
	flagID           = "id"
	flagMinBid       = "min-bid"
	flagMinIncrement = "min-increment"
	flagDuration     = "duration"
	flagSealed       = "sealed"
	flagPCRs         = "pcrs"
)

var (
	signerFlag = &cli.StringFlag{
		Name:     flagSigner,
		Usage:    "signing identity, a hex `PUBKEY` or a name",
		Required: true,
	}
	auctionAddrFlag = &cli.StringFlag{
		Name:     flagAuction,
		Usage:    "auction `ADDRESS` in hex",
		Required: true,
	}
	bidderFlag = &cli.StringFlag{
		Name:     flagBidder,
		Usage:    "bidder identity, a hex `PUBKEY` or a name",
		Required: true,
	}
	amountFlagDef = &cli.StringFlag{
		Name:     flagAmount,
		Usage:    "decimal `AMOUNT`, e.g. 1.5",
		Required: true,
	}
)

// instruction is a command taking a signer and an auction.
func instruction(name, usage string, action func(*cli.Context, *node) error, extra ...cli.Flag) *cli.Command {
	return &cli.Command{
		Name:   name,
		Usage:  usage,
		Action: withNode(action),
		Flags:  append([]cli.Flag{signerFlag, auctionAddrFlag}, extra...),
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "sealbid"
	app.Usage = "sealed-bid auction ledger"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  flagCfg,
			Usage: "node configuration `FILE`; defaults apply when omitted",
		},
		&cli.StringFlag{
			Name:  flagData,
			Usage: "ledger database `DIR`, overrides Ledger.Path",
		},
	}
	app.Before = func(c *cli.Context) error {
		cfg, err := config.LoadNode(c.String(flagCfg))
		if err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(log.Init(cfg.Log.Level, cfg.Log.Encoding, cfg.Log.ErrorsFile))
	}

	app.Commands = []*cli.Command{
		{
			Name:   "fund",
			Usage:  "Credit a wallet",
			Action: withNode(cmdFund),
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagOwner, Usage: "wallet `OWNER`", Required: true},
				amountFlagDef,
			},
		},
		{
			Name:   "balance",
			Usage:  "Show a wallet balance",
			Action: withNode(cmdBalance),
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagOwner, Usage: "wallet `OWNER`", Required: true},
			},
		},
		{
			Name:   "create-auction",
			Usage:  "Open an auction owned by the signer",
			Action: withNode(cmdCreateAuction),
			Flags: []cli.Flag{
				signerFlag,
				&cli.Uint64Flag{Name: flagID, Usage: "auction `ID`, unique per authority", Required: true},
				&cli.StringFlag{Name: flagMinBid, Usage: "minimum first bid `AMOUNT`", Required: true},
				&cli.StringFlag{Name: flagMinIncrement, Usage: "minimum raise `AMOUNT`", Value: "0"},
				&cli.DurationFlag{Name: flagDuration, Usage: "bidding window", Value: time.Hour},
			},
		},
		instruction("register", "Create the signer's bid account in an auction", cmdRegister),
		instruction("delegate", "Hand the signer's bid to the private domain", cmdDelegate),
		instruction("submit", "Submit or raise the signer's bid", cmdSubmit,
			amountFlagDef,
			&cli.BoolFlag{Name: flagSealed, Usage: "encrypt the amount to the enclave key"},
			&cli.StringFlag{Name: flagPCRs, Usage: "verify the enclave key against known PCR sets in `FILE`"},
		),
		instruction("commit", "Commit the signer's bid back to the ledger", cmdCommit),
		instruction("finalize", "Finalize an auction once every committed bid is settled", cmdFinalize),
		instruction("claim-proceeds", "Pay the winning amount to the seller", cmdClaimProceeds),
		instruction("claim-refund", "Refund a losing bidder's deposit", cmdClaimRefund),
		instruction("close", "Close the signer's bid account and return its rent", cmdClose),
		{
			Name:   "settle",
			Usage:  "Settle one committed bid (anyone may call this)",
			Action: withNode(cmdSettle),
			Flags:  []cli.Flag{auctionAddrFlag, bidderFlag},
		},
		{
			Name:   "crank",
			Usage:  "Run one settlement pass over every ended auction",
			Action: withNode(cmdCrank),
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagOperator, Usage: "also finalize auctions owned by `OPERATOR`"},
			},
		},
		{
			Name:   "auctions",
			Usage:  "List auctions",
			Action: withNode(cmdListAuctions),
		},
		{
			Name:   "show-auction",
			Usage:  "Show an auction with its vault and bids",
			Action: withNode(cmdShowAuction),
			Flags:  []cli.Flag{auctionAddrFlag},
		},
		{
			Name:   "show-bid",
			Usage:  "Show one bid account",
			Action: withNode(cmdShowBid),
			Flags:  []cli.Flag{auctionAddrFlag, bidderFlag},
		},
		{
			Name:   "serve",
			Usage:  "Run the HTTP gateway and the settlement crank",
			Action: withNode(cmdServe),
		},
		{
			Name:   "simulate",
			Usage:  "Play a two bidder auction on a throwaway ledger",
			Action: cmdSimulate,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagSeller, Usage: "seller `NAME`", Value: "house"},
			},
		},
	}
	return app
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", tracerr.Sprint(err))
		os.Exit(1)
	}
}

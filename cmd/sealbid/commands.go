package main

import (
	"encoding/json"
	"fmt"

	"github.com/hermeznetwork/tracerr"
	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/ledger"
	"github.com/cloudx-io/sealedbid/log"
	"github.com/cloudx-io/sealedbid/validation"
)

// withNode opens the ledger around action and closes it afterwards.
func withNode(action func(c *cli.Context, n *node) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		n, err := openNode(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := n.Close(); err != nil {
				log.Errorf("close ledger: %v", err)
			}
		}()
		return action(c, n)
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return tracerr.Wrap(enc.Encode(v))
}

// signerAuction reads the two flags almost every instruction takes.
func signerAuction(c *cli.Context) (signer, auction core.Pubkey, err error) {
	if signer, err = identityFlag(c, flagSigner); err != nil {
		return
	}
	auction, err = auctionFlag(c)
	return
}

func cmdFund(c *cli.Context, n *node) error {
	owner, err := identityFlag(c, flagOwner)
	if err != nil {
		return err
	}
	amount, err := amountFlag(c, flagAmount)
	if err != nil {
		return err
	}
	if err := n.ledger.Airdrop(c.Context, owner, amount); err != nil {
		return tracerr.Wrap(err)
	}
	return printBalance(c, n, owner)
}

func cmdBalance(c *cli.Context, n *node) error {
	owner, err := identityFlag(c, flagOwner)
	if err != nil {
		return err
	}
	return printBalance(c, n, owner)
}

func printBalance(c *cli.Context, n *node, owner core.Pubkey) error {
	balance, err := n.ledger.Balance(owner)
	if err != nil {
		return tracerr.Wrap(err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s %s\n", owner, core.FormatAmount(balance))
	return tracerr.Wrap(err)
}

func cmdCreateAuction(c *cli.Context, n *node) error {
	authority, err := identityFlag(c, flagSigner)
	if err != nil {
		return err
	}
	minBid, err := amountFlag(c, flagMinBid)
	if err != nil {
		return err
	}
	minIncrement, err := amountFlag(c, flagMinIncrement)
	if err != nil {
		return err
	}
	duration := int64(c.Duration(flagDuration).Seconds())

	address, err := n.ledger.CreateAuction(c.Context, authority, c.Uint64(flagID), minBid, minIncrement, duration)
	if err != nil {
		return tracerr.Wrap(err)
	}
	_, err = fmt.Fprintln(c.App.Writer, address)
	return tracerr.Wrap(err)
}

func cmdRegister(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	bid, err := n.ledger.InitializeSealedBid(c.Context, signer, auction)
	if err != nil {
		return tracerr.Wrap(err)
	}
	_, err = fmt.Fprintln(c.App.Writer, bid)
	return tracerr.Wrap(err)
}

func cmdDelegate(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	return tracerr.Wrap(n.ledger.DelegateBid(c.Context, signer, auction))
}

func cmdSubmit(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	amount, err := amountFlag(c, flagAmount)
	if err != nil {
		return err
	}
	if !c.Bool(flagSealed) {
		return tracerr.Wrap(n.ledger.SubmitSealedBid(c.Context, signer, auction, amount))
	}

	sealed, err := sealForEnclave(c, n, amount)
	if err != nil {
		return err
	}
	return tracerr.Wrap(n.ledger.SubmitEncryptedBid(c.Context, signer, auction, sealed))
}

// sealForEnclave encrypts amount to the enclave key. With --pcrs the key
// attestation must verify before the key is used.
func sealForEnclave(c *cli.Context, n *node, amount uint64) (*enclaveapi.SealedAmount, error) {
	if n.enclave == nil {
		return nil, tracerr.Wrap(fmt.Errorf("sealed submissions need the enclave domain"))
	}
	keyResponse, err := n.enclave.PublicKey(c.Context)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if path := c.String(flagPCRs); path != "" {
		knownPCRs, err := validation.LoadPCRsFromFile(path)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		result, err := validation.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, keyResponse.PublicKey,
			validation.Options{KnownPCRs: knownPCRs})
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if !result.IsValid() {
			return nil, tracerr.Wrap(fmt.Errorf("enclave key attestation rejected: %v", result.ValidationDetails))
		}
	}
	publicKey, err := enclaveapi.ParsePublicKeyPEM(keyResponse.PublicKey)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	sealed, err := enclaveapi.SealAmount(amount, publicKey, enclaveapi.HashAlgorithmSHA256)
	return sealed, tracerr.Wrap(err)
}

func cmdCommit(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	if err := n.ledger.CommitBid(c.Context, signer, auction); err != nil {
		return tracerr.Wrap(err)
	}
	account, err := n.ledger.SealedBid(auction, signer)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return printJSON(c, account)
}

func cmdSettle(c *cli.Context, n *node) error {
	auction, err := auctionFlag(c)
	if err != nil {
		return err
	}
	bidder, err := identityFlag(c, flagBidder)
	if err != nil {
		return err
	}
	return tracerr.Wrap(n.ledger.SettleCommittedBid(c.Context, auction, bidder))
}

func cmdFinalize(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	if err := n.ledger.FinalizeAuction(c.Context, signer, auction); err != nil {
		return tracerr.Wrap(err)
	}
	return showAuction(c, n, auction)
}

func cmdClaimProceeds(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	if err := n.ledger.ClaimSellerProceeds(c.Context, signer, auction); err != nil {
		return tracerr.Wrap(err)
	}
	return printBalance(c, n, signer)
}

func cmdClaimRefund(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	if err := n.ledger.ClaimRefund(c.Context, signer, auction); err != nil {
		return tracerr.Wrap(err)
	}
	return printBalance(c, n, signer)
}

func cmdClose(c *cli.Context, n *node) error {
	signer, auction, err := signerAuction(c)
	if err != nil {
		return err
	}
	if err := n.ledger.CloseSealedBid(c.Context, signer, auction); err != nil {
		return tracerr.Wrap(err)
	}
	return printBalance(c, n, signer)
}

// auctionView is what show-auction prints.
type auctionView struct {
	Auction core.AuctionHouse   `json:"auction"`
	Vault   *core.Vault         `json:"vault"`
	Bids    []ledger.BidAccount `json:"bids"`
}

func showAuction(c *cli.Context, n *node, address core.Pubkey) error {
	auction, err := n.ledger.Auction(address)
	if err != nil {
		return tracerr.Wrap(err)
	}
	vault, err := n.ledger.Vault(address)
	if err != nil {
		return tracerr.Wrap(err)
	}
	bids, err := n.ledger.Bids(address)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return printJSON(c, auctionView{Auction: *auction, Vault: vault, Bids: bids})
}

func cmdShowAuction(c *cli.Context, n *node) error {
	auction, err := auctionFlag(c)
	if err != nil {
		return err
	}
	return showAuction(c, n, auction)
}

func cmdListAuctions(c *cli.Context, n *node) error {
	auctions, err := n.ledger.Auctions()
	if err != nil {
		return tracerr.Wrap(err)
	}
	for _, a := range auctions {
		if _, err := fmt.Fprintf(c.App.Writer, "%s id=%d authority=%s highest=%s finalized=%t\n",
			a.Address, a.AuctionID, a.Authority.Short(), core.FormatAmount(a.HighestBid), a.Finalized); err != nil {
			return tracerr.Wrap(err)
		}
	}
	return nil
}

func cmdShowBid(c *cli.Context, n *node) error {
	auction, err := auctionFlag(c)
	if err != nil {
		return err
	}
	bidder, err := identityFlag(c, flagBidder)
	if err != nil {
		return err
	}
	account, err := n.ledger.SealedBid(auction, bidder)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return printJSON(c, account)
}

func cmdCrank(c *cli.Context, n *node) error {
	var operator core.Pubkey
	if c.IsSet(flagOperator) {
		op, err := identityFlag(c, flagOperator)
		if err != nil {
			return err
		}
		operator = op
	}
	stats, err := ledger.NewCranker(n.ledger, 0, operator).Crank(c.Context)
	if err != nil {
		return tracerr.Wrap(err)
	}
	_, err = fmt.Fprintf(c.App.Writer, "settled=%d finalized=%d\n", stats.Settled, stats.Finalized)
	return tracerr.Wrap(err)
}

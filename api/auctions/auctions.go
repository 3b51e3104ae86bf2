package auctions

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cloudx-io/sealedbid/api/utils"
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
)

type Auctions struct {
	ledger *ledger.Ledger
}

func New(l *ledger.Ledger) *Auctions {
	return &Auctions{l}
}

func (a *Auctions) handleList(w http.ResponseWriter, req *http.Request) error {
	records, err := a.ledger.Auctions()
	if err != nil {
		return err
	}
	now := a.ledger.Clock().Now()
	out := make([]Auction, 0, len(records))
	for _, record := range records {
		out = append(out, newAuction(record, now))
	}
	return utils.WriteJSON(w, out)
}

func (a *Auctions) handleGetAuction(w http.ResponseWriter, req *http.Request) error {
	address, err := utils.PubkeyVar(req, "auction")
	if err != nil {
		return err
	}
	record, err := a.ledger.Auction(address)
	if err != nil {
		return utils.LedgerError(err)
	}
	return utils.WriteJSON(w, newAuction(*record, a.ledger.Clock().Now()))
}

func (a *Auctions) handleListBids(w http.ResponseWriter, req *http.Request) error {
	address, err := utils.PubkeyVar(req, "auction")
	if err != nil {
		return err
	}
	if _, err := a.ledger.Auction(address); err != nil {
		return utils.LedgerError(err)
	}
	accounts, err := a.ledger.Bids(address)
	if err != nil {
		return err
	}
	out := make([]Bid, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, newBid(account))
	}
	return utils.WriteJSON(w, out)
}

func (a *Auctions) bidVars(req *http.Request) (auction, bidder core.Pubkey, err error) {
	if auction, err = utils.PubkeyVar(req, "auction"); err != nil {
		return
	}
	bidder, err = utils.PubkeyVar(req, "bidder")
	return
}

func (a *Auctions) handleGetBid(w http.ResponseWriter, req *http.Request) error {
	auction, bidder, err := a.bidVars(req)
	if err != nil {
		return err
	}
	account, err := a.ledger.SealedBid(auction, bidder)
	if err != nil {
		return utils.LedgerError(err)
	}
	return utils.WriteJSON(w, newBid(*account))
}

func (a *Auctions) handleGetAttestation(w http.ResponseWriter, req *http.Request) error {
	auction, bidder, err := a.bidVars(req)
	if err != nil {
		return err
	}
	account, err := a.ledger.SealedBid(auction, bidder)
	if err != nil {
		return utils.LedgerError(err)
	}
	if account.Attestation == "" {
		return utils.NotFound(errors.New("bid has no commit attestation"))
	}
	raw, err := account.Attestation.Decode()
	if err != nil {
		return err
	}
	compressed, err := raw.CompressGzip()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, Attestation{Bid: account.Address, Attestation: compressed.String()})
}

// handleSettle settles one committed bid. Settlement is permissionless, so
// the gateway needs no signer for it.
func (a *Auctions) handleSettle(w http.ResponseWriter, req *http.Request) error {
	auction, bidder, err := a.bidVars(req)
	if err != nil {
		return err
	}
	if err := a.ledger.SettleCommittedBid(req.Context(), auction, bidder); err != nil {
		return utils.LedgerError(err)
	}
	record, err := a.ledger.Auction(auction)
	if err != nil {
		return utils.LedgerError(err)
	}
	return utils.WriteJSON(w, newAuction(*record, a.ledger.Clock().Now()))
}

func (a *Auctions) handleGetVault(w http.ResponseWriter, req *http.Request) error {
	address, err := utils.PubkeyVar(req, "auction")
	if err != nil {
		return err
	}
	vault, err := a.ledger.Vault(address)
	if err != nil {
		return utils.LedgerError(err)
	}
	return utils.WriteJSON(w, Vault{Vault: *vault, BalanceDisplay: core.FormatAmount(vault.Balance)})
}

func (a *Auctions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleList))
	sub.Path("/{auction}").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleGetAuction))
	sub.Path("/{auction}/vault").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleGetVault))
	sub.Path("/{auction}/bids").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleListBids))
	sub.Path("/{auction}/bids/{bidder}").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleGetBid))
	sub.Path("/{auction}/bids/{bidder}/attestation").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(a.handleGetAttestation))
	sub.Path("/{auction}/bids/{bidder}/settle").Methods("POST").HandlerFunc(utils.WrapHandlerFunc(a.handleSettle))
}

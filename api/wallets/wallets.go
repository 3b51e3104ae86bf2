package wallets

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudx-io/sealedbid/api/utils"
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
)

// Wallet is the spendable balance of one signer.
type Wallet struct {
	Owner          core.Pubkey `json:"owner"`
	Balance        uint64      `json:"balance"`
	BalanceDisplay string      `json:"balance_display"`
}

type Wallets struct {
	ledger *ledger.Ledger
}

func New(l *ledger.Ledger) *Wallets {
	return &Wallets{l}
}

func (ws *Wallets) handleGetWallet(w http.ResponseWriter, req *http.Request) error {
	owner, err := utils.PubkeyVar(req, "owner")
	if err != nil {
		return err
	}
	balance, err := ws.ledger.Balance(owner)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, Wallet{
		Owner:          owner,
		Balance:        balance,
		BalanceDisplay: core.FormatAmount(balance),
	})
}

func (ws *Wallets) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{owner}").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(ws.handleGetWallet))
}

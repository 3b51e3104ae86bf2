package events

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cloudx-io/sealedbid/api/utils"
	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/ledger"
)

type Events struct {
	notifier *ledger.Notifier
}

func New(notifier *ledger.Notifier) *Events {
	return &Events{notifier}
}

// handleRecent returns the buffered notifications, oldest first, optionally
// filtered by ?auction= and capped by ?limit=.
func (e *Events) handleRecent(w http.ResponseWriter, req *http.Request) error {
	var auction core.Pubkey
	if raw := req.URL.Query().Get("auction"); raw != "" {
		parsed, err := core.ParsePubkey(raw)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "auction"))
		}
		auction = parsed
	}
	limit, err := utils.LimitQuery(req)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, e.notifier.Recent(auction, limit))
}

func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(e.handleRecent))
}

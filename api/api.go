package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudx-io/sealedbid/api/auctions"
	"github.com/cloudx-io/sealedbid/api/events"
	"github.com/cloudx-io/sealedbid/api/wallets"
	"github.com/cloudx-io/sealedbid/ledger"
	"github.com/cloudx-io/sealedbid/metric"
)

// New returns the gateway handler over l. allowedOrigins is a comma
// separated CORS origin list.
func New(l *ledger.Ledger, allowedOrigins string) (http.Handler, error) {
	origins := strings.Split(strings.TrimSpace(allowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	prom, err := metric.NewPrometheus()
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(prom.Middleware)

	auctions.New(l).
		Mount(router, "/v1/auctions")
	wallets.New(l).
		Mount(router, "/v1/wallets")
	events.New(l.Notifier()).
		Mount(router, "/v1/events")

	router.Path("/metrics").Methods("GET").Handler(promhttp.Handler())
	router.Path("/health").Methods("GET").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}))(router), nil
}

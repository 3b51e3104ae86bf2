package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus contains the HTTP metrics gathered by the gateway
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
}

// NewPrometheus registers the gateway request collectors, reusing the
// already registered ones when called more than once.
func NewPrometheus() (*Prometheus, error) {
	reqCnt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceAPI,
			Name:      "requests_total",
			Help:      "How many HTTP requests processed, partitioned by status code, method and route",
		},
		[]string{"code", "method", "path"},
	)
	if err := prometheus.Register(reqCnt); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		reqCnt = are.ExistingCollector.(*prometheus.CounterVec)
	}
	reqDur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceAPI,
			Name:      "request_duration_seconds",
			Help:      "The HTTP request latencies in seconds",
		},
		[]string{"code", "method", "path"},
	)
	if err := prometheus.Register(reqDur); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		reqDur = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &Prometheus{
		reqCnt: reqCnt,
		reqDur: reqDur,
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records count and latency per route template, so path
// parameters do not explode label cardinality.
func (p *Prometheus) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		status := strconv.Itoa(rec.status)
		elapsed := float64(time.Since(start)) / float64(time.Second)
		p.reqDur.WithLabelValues(status, r.Method, path).Observe(elapsed)
		p.reqCnt.WithLabelValues(status, r.Method, path).Inc()
	})
}

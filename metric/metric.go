package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudx-io/sealedbid/core"
	"github.com/cloudx-io/sealedbid/log"
)

const (
	namespaceLedger  = "ledger"
	namespaceCrank   = "crank"
	namespaceEnclave = "enclave"
	namespaceAPI     = "api"
)

var (
	// Instructions counts executed ledger instructions by outcome.
	Instructions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "instructions_total",
			Help:      "Ledger instructions by name and result",
		}, []string{"instruction", "result"})

	// InstructionDuration instruction execution time in milliseconds.
	InstructionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceLedger,
			Name:      "instruction_duration_ms",
			Help:      "Ledger instruction execution time",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"instruction"})

	// Errors rejected instructions by auction error code.
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "errors_total",
			Help:      "Rejected instructions by error code",
		}, []string{"code"})

	// EscrowDeposited base units moved into vaults.
	EscrowDeposited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "escrow_deposited_units_total",
			Help:      "Base units deposited into auction vaults",
		})

	// EscrowPaidOut base units paid from vaults to sellers and bidders.
	EscrowPaidOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "escrow_paid_out_units_total",
			Help:      "Base units paid out of auction vaults",
		})

	// Notifications emitted notifications by kind.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceLedger,
			Name:      "notifications_total",
			Help:      "Emitted notifications by kind",
		}, []string{"kind"})

	// CrankSettled bids settled by the crank.
	CrankSettled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceCrank,
			Name:      "settled_total",
			Help:      "Bids settled by the settlement crank",
		})

	// CrankFinalized auctions finalized by the crank.
	CrankFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceCrank,
			Name:      "finalized_total",
			Help:      "Auctions finalized by the settlement crank",
		})

	// EnclaveRequests private domain round trips by request type and result.
	EnclaveRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceEnclave,
			Name:      "requests_total",
			Help:      "Private domain requests by type and result",
		}, []string{"type", "result"})
)

func init() {
	if err := registerCollectors(); err != nil {
		log.Error(err)
	}
}

func registerCollectors() error {
	for _, c := range []prometheus.Collector{
		Instructions,
		InstructionDuration,
		Errors,
		EscrowDeposited,
		EscrowPaidOut,
		Notifications,
		CrankSettled,
		CrankFinalized,
		EnclaveRequests,
	} {
		if err := registerCollector(c); err != nil {
			return err
		}
	}
	return nil
}

func registerCollector(collector prometheus.Collector) error {
	err := prometheus.Register(collector)
	if err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}

// MeasureDuration observes the time elapsed since start in milliseconds.
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Microseconds()) / 1000)
}

// CollectInstruction records the outcome of one ledger instruction. Auction
// errors are counted under their code name, anything else as "internal".
func CollectInstruction(instruction string, start time.Time, err error) {
	MeasureDuration(InstructionDuration, start, instruction)
	if err == nil {
		Instructions.WithLabelValues(instruction, "ok").Inc()
		return
	}
	Instructions.WithLabelValues(instruction, "rejected").Inc()
	if code, ok := core.CodeOf(err); ok {
		Errors.WithLabelValues(code.String()).Inc()
		return
	}
	Errors.WithLabelValues("internal").Inc()
}

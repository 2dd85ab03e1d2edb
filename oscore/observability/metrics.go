package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK              = "ok"
	ResultExhausted       = "exhausted"
	ResultContextNotFound = "context_not_found"
	ResultAuthFailed      = "auth_failed"
	ResultReplay          = "replay"
	ResultMalformed       = "malformed"
	ResultRateLimited     = "rate_limited"
	ResultError           = "error"
)

var (
	messagesProtected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscore",
			Subsystem: "messages",
			Name:      "protected_total",
			Help:      "Messages passed through protect, by result.",
		},
		[]string{"result"},
	)
	messagesUnprotected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscore",
			Subsystem: "messages",
			Name:      "unprotected_total",
			Help:      "Messages passed through unprotect, by result.",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the collectors with reg. A nil reg uses the default
// registerer. Registering again with the same registerer is a no-op, and the
// counters are shared by every registerer they were added to.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{messagesProtected, messagesUnprotected} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
}

func RecordProtect(result string) {
	messagesProtected.WithLabelValues(result).Inc()
}

func RecordUnprotect(result string) {
	messagesUnprotected.WithLabelValues(result).Inc()
}

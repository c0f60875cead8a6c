package protocol

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/dvp"
)

var (
	promSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvp_protocol_sessions",
		Help: "total number of sessions started",
	}, []string{"role"})

	promOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvp_protocol_outcomes",
		Help: "total number of sessions ended, by outcome",
	}, []string{"role", "outcome"})
)

func init() {
	dvp.PromCollectors = append(dvp.PromCollectors, promSessions, promOutcomes)
}

func observeOutcome(role string, err error) {
	outcome := "done"

	switch err.(type) {
	case nil:
	case RejectedTermsError:
		outcome = "rejected"
	case UnreachableError:
		outcome = "unreachable"
	case VerificationError:
		outcome = "verification"
	default:
		outcome = "failed"
	}

	promOutcomes.WithLabelValues(role, outcome).Inc()
}

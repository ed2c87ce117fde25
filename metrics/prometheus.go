package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records payment gate activity as Prometheus counters.
type Prometheus struct {
	challenges    *prometheus.CounterVec
	verifications *prometheus.CounterVec
	settlements   *prometheus.CounterVec
}

// NewPrometheus creates a Recorder registered on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_challenges_issued_total",
			Help: "Number of 402 payment challenges issued.",
		}, []string{"network"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_payments_verified_total",
			Help: "Number of payment verification verdicts by validity.",
		}, []string{"network", "valid"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_payments_settled_total",
			Help: "Number of settlement attempts by outcome.",
		}, []string{"network", "success"}),
	}
	reg.MustRegister(p.challenges, p.verifications, p.settlements)
	return p
}

func (p *Prometheus) ChallengeIssued(network string) {
	p.challenges.WithLabelValues(network).Inc()
}

func (p *Prometheus) PaymentVerified(network string, valid bool) {
	p.verifications.WithLabelValues(network, strconv.FormatBool(valid)).Inc()
}

func (p *Prometheus) PaymentSettled(network string, success bool) {
	p.settlements.WithLabelValues(network, strconv.FormatBool(success)).Inc()
}

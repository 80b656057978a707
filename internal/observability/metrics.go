package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "showreg_api_requests_total", Help: "Admin API requests"},
		[]string{"endpoint", "status"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "showreg_transitions_total", Help: "Approval state transitions"},
		[]string{"action", "result"},
	)
	SMTPSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "showreg_smtp_send_total", Help: "SMTP delivery attempt outcomes"},
		[]string{"result", "account"},
	)
	SMTPLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "showreg_smtp_send_latency_seconds", Help: "SMTP delivery latency"},
	)
	DispatchJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "showreg_dispatch_jobs_total", Help: "Bulk dispatch jobs"},
		[]string{"type", "result"},
	)
	DispatchRecipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "showreg_dispatch_recipients_total", Help: "Per-recipient bulk outcomes"},
		[]string{"result"},
	)
	PoolExhaustions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "showreg_pool_exhausted_total", Help: "Sends that ran out of accounts"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Transitions, SMTPSend, SMTPLatency,
		DispatchJobs, DispatchRecipients, PoolExhaustions)
}

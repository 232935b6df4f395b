package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_relay_requests_total",
		Help: "Cross-chain bid requests by result.",
	},
	[]string{"result"},
)

var executionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_relay_executions_total",
		Help: "Relayed bid executions by result.",
	},
	[]string{"result"},
)

func requestCount(result string) {
	requestsTotal.With(map[string]string{"result": result}).Inc()
}

func executeCount(result string) {
	executionsTotal.With(map[string]string{"result": result}).Inc()
}

package state

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rirc",
		Subsystem: "dispatch",
		Name:      "messages_total",
		Help:      "Messages routed to a per-command routine, by command keyword or numeric code.",
	}, []string{"command"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rirc",
		Subsystem: "dispatch",
		Name:      "errors_total",
		Help:      "Recoverable dispatch errors, by error kind.",
	}, []string{"kind"})

	trackedEntities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rirc",
		Subsystem: "state",
		Name:      "entities",
		Help:      "Count of tracked servers and channels, by entity kind.",
	}, []string{"entity"})
)

func init() {
	prometheus.MustRegister(dispatchTotal, errorsTotal, trackedEntities)
}

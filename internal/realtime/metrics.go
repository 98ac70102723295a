package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// registeredUsers gauges users with a live entry in a Registry.
	registeredUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_registered_users",
			Help: "Number of users currently registered to an open connection.",
		},
	)

	// handshakes counts identity checks by result (ok, refused, error).
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handshakes_total",
			Help: "Total realtime handshakes by result.",
		},
		[]string{"result"},
	)

	// dispatches counts notification pushes by type and outcome.
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dispatch_total",
			Help: "Total notification dispatch attempts by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// openConns gauges open websocket connections, authenticated or not.
	openConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_open",
			Help: "Current number of open realtime connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(registeredUsers, handshakes, dispatches, openConns)
}

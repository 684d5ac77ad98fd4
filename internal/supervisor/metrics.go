package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	workerReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelgate",
			Subsystem: "supervisor",
			Name:      "worker_ready",
			Help:      "1 when the model's worker passed its startup readiness check",
		},
		[]string{"model"},
	)

	launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelgate",
			Subsystem: "supervisor",
			Name:      "launches_total",
			Help:      "Worker launch attempts by result (ready, launch_error, not_ready)",
		},
		[]string{"model", "result"},
	)

	readySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelgate",
			Subsystem: "supervisor",
			Name:      "time_to_ready_seconds",
			Help:      "Seconds from launch until the worker reported its model loaded",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(workerReady, launchesTotal, readySeconds)
}

package imageproc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hatchling",
		Name:      "image_operations_total",
		Help:      "Image operations by kind and outcome.",
	},
	[]string{"operation", "status"},
)

func observe(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
}

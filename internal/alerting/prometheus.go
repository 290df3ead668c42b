package alerting

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusAlerter counts alerts by reason so dashboards can page on them.
type PrometheusAlerter struct {
	alerts *prometheus.CounterVec
}

func NewPrometheusAlerter(reg prometheus.Registerer) (*PrometheusAlerter, error) {
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "reconciliation_alerts_total",
		Help:      "Paid orders flagged for manual reconciliation.",
	}, []string{"reason"})

	if err := reg.Register(alerts); err != nil {
		return nil, fmt.Errorf("register reconciliation_alerts_total: %w", err)
	}
	return &PrometheusAlerter{alerts: alerts}, nil
}

func (a *PrometheusAlerter) Alert(_ context.Context, alert Alert) error {
	a.alerts.WithLabelValues(alert.Reason).Inc()
	return nil
}

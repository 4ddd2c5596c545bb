package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrdersCreated *prometheus.CounterVec
	OrderValue    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Total orders created",
			},
			[]string{"product"},
		),
		OrderValue: factory.NewCounter(prometheus.CounterOpts{
			Name: "order_value_total",
			Help: "Total order value in dollars",
		}),
	}
}

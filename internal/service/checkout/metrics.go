package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"method", "outcome"})

	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_callbacks_total",
		Help: "Payment confirmations by payment method and outcome.",
	}, []string{"method", "outcome"})
)

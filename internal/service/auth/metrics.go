package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authLoginTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Total login attempts by outcome",
	},
	[]string{"result"},
)

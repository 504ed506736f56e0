package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the API collectors
type Metrics struct {
	Requests *prometheus.CounterVec
}

// NewMetrics creates the API collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitescope_api_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests)
	}
	return m
}

func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Package middleware provides the gin middleware of the delivery integration API.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pos/backend/internal/infrastructure/metrics"
)

// unmatchedRoute labels requests no route matched, so arbitrary paths never become label values
const unmatchedRoute = "unmatched"

// HTTPMetrics records request count and latency per route template and status class.
// Paths listed in skip (for example /metrics itself) are not recorded.
func HTTPMetrics(m *metrics.Metrics, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.ObserveHTTP(c.Request.Method, route, statusClass(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// statusClass collapses a status code into its class, e.g. 404 -> "4xx"
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/accounts-service/internal/metrics"
)

// Metrics считает запросы и их длительность по шаблону маршрута chi.
// nil-метрики делают мидлвар no-op.
func Metrics(m *metrics.HTTP) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			// Шаблон известен только после роутинга.
			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			m.Observe(r.Method, route, sw.Status(), time.Since(start))
		})
	}
}

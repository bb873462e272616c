package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/taskman/internal/metrics"
)

// NewMetricsMiddleware はHTTPリクエストのメトリクスを記録するミドルウェアを返す。
// メソッドとステータスコード別のリクエスト数と、処理時間の分布を記録する。
func NewMetricsMiddleware(collector *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			collector.HTTPRequests.WithLabelValues(
				r.Method,
				strconv.Itoa(rec.statusCode),
			).Inc()
			collector.RequestDuration.Observe(time.Since(start).Seconds())
		})
	}
}

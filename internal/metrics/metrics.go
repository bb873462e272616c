// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はアプリケーションメトリクスを保持する。
type Collector struct {
	registry *prometheus.Registry

	// タスク操作のカウンター
	TasksCreated *prometheus.CounterVec
	TasksToggled prometheus.Counter
	TasksDeleted prometheus.Counter

	// 認証関連のカウンター
	UsersRegistered prometheus.Counter
	LoginAttempts   *prometheus.CounterVec

	// HTTPリクエストのメトリクス
	HTTPRequests    *prometheus.CounterVec
	RequestDuration prometheus.Histogram
}

// NewCollector はメトリクスコレクターを生成し、レジストリに登録する。
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		TasksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskman_tasks_created_total",
				Help: "作成されたタスクの累計数",
			},
			[]string{"result"},
		),
		TasksToggled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskman_tasks_toggled_total",
				Help: "完了状態が切り替えられたタスクの累計数",
			},
		),
		TasksDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskman_tasks_deleted_total",
				Help: "削除されたタスクの累計数",
			},
		),
		UsersRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskman_users_registered_total",
				Help: "登録されたユーザーの累計数",
			},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskman_login_attempts_total",
				Help: "ログイン試行の累計数",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskman_http_requests_total",
				Help: "HTTPリクエストの累計数",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskman_http_request_duration_seconds",
				Help:    "HTTPリクエスト処理時間の分布",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		c.TasksCreated,
		c.TasksToggled,
		c.TasksDeleted,
		c.UsersRegistered,
		c.LoginAttempts,
		c.HTTPRequests,
		c.RequestDuration,
	)

	return c
}

// Handler はPrometheusメトリクス公開用のHTTPハンドラーを返す。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントをルーターに登録する。
func SetupMetricsRoute(r chi.Router, collector *Collector) {
	r.Handle("/metrics", collector.Handler())
}

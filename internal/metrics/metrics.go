package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 会话生命周期与同步指标
var (
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freechat_sessions_created_total",
			Help: "Total number of sessions created by initial state",
		},
		[]string{"state"},
	)

	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freechat_session_promotions_total",
			Help: "Total number of draft promotions by outcome",
		},
		[]string{"outcome"},
	)

	SessionsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freechat_sessions_deleted_total",
			Help: "Total number of sessions deleted",
		},
	)

	SyncFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "freechat_sync_flushes_total",
			Help: "Total number of debounced display-to-session write-backs",
		},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freechat_gateway_errors_total",
			Help: "Total number of conversation gateway failures by operation",
		},
		[]string{"operation"},
	)

	SettingsSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freechat_settings_saves_total",
			Help: "Total number of settings saves by trigger",
		},
		[]string{"trigger"},
	)

	StreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freechat_stream_requests_total",
			Help: "Total number of completion stream requests by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

package errors

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMonitor 错误监控器
type ErrorMonitor struct {
	errorCounter *prometheus.CounterVec

	stats      map[string]*ErrorStats
	statsMutex sync.RWMutex
}

// ErrorStats 错误统计信息
type ErrorStats struct {
	Code      string
	Type      string
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time
}

var (
	monitorOnce    sync.Once
	sharedCounter  *prometheus.CounterVec
)

// NewErrorMonitor 创建错误监控器
func NewErrorMonitor() *ErrorMonitor {
	monitorOnce.Do(func() {
		sharedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freechat_errors_total",
				Help: "Total number of errors by code and type",
			},
			[]string{"code", "type", "endpoint"},
		)
	})

	return &ErrorMonitor{
		errorCounter: sharedCounter,
		stats:        make(map[string]*ErrorStats),
	}
}

// RecordError 记录错误
func (em *ErrorMonitor) RecordError(appErr *AppError, endpoint string) {
	if appErr == nil {
		return
	}

	typeStr := getErrorTypeString(appErr.Type)
	em.errorCounter.WithLabelValues(string(appErr.Code), typeStr, endpoint).Inc()

	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	key := string(appErr.Code) + ":" + typeStr
	now := time.Now()
	if st, ok := em.stats[key]; ok {
		st.Count++
		st.LastSeen = now
	} else {
		em.stats[key] = &ErrorStats{
			Code:      string(appErr.Code),
			Type:      typeStr,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
}

// Snapshot 返回当前错误统计的副本
func (em *ErrorMonitor) Snapshot() []ErrorStats {
	em.statsMutex.RLock()
	defer em.statsMutex.RUnlock()

	out := make([]ErrorStats, 0, len(em.stats))
	for _, st := range em.stats {
		out = append(out, *st)
	}
	return out
}

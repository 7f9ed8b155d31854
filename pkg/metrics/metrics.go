// 包 metrics 提供 Prometheus helper，包含 HTTP 与业务指标模板
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/digitalbank/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数（按方法/路径/状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 转账计数（按结果）
	TransfersTotal *prometheus.CounterVec
	// 结算计数（按结果）
	SettlementsTotal *prometheus.CounterVec
	// 结算乐观锁冲突重试计数
	SettlementConflictRetries prometheus.Counter
	// 对账任务修复/过期计数
	ReconciliationRepairs prometheus.Counter
	ReconciliationExpired prometheus.Counter
	// 转账单状态与终态交易对齐计数
	TransferRepairs prometheus.Counter

	// OTP 签发/校验计数
	OTPIssuedTotal    prometheus.Counter
	OTPValidatedTotal *prometheus.CounterVec

	// 通知投递失败计数
	NotificationFailures prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "transfers_total",
			Help:      "Total transfer requests by rail and outcome",
		}, []string{"type", "outcome"}),
		SettlementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "settlements_total",
			Help:      "Total settlement attempts by outcome",
		}, []string{"outcome"}),
		SettlementConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "settlement_conflict_retries_total",
			Help:      "Optimistic lock conflicts retried during settlement",
		}),
		ReconciliationRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "reconciliation_repairs_total",
			Help:      "Pending transactions completed from ledger journal by the sweep",
		}),
		ReconciliationExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "reconciliation_expired_total",
			Help:      "Pending transactions expired by the sweep",
		}),
		TransferRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "transfer_repairs_total",
			Help:      "Pending transfers aligned with their settled transaction by the sweep",
		}),
		OTPIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "otp_issued_total",
			Help:      "Total OTP codes issued",
		}),
		OTPValidatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "otp_validated_total",
			Help:      "Total OTP validation attempts by result",
		}, []string{"result"}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banking",
			Subsystem: serviceName,
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that failed and were dropped",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransfersTotal,
		m.SettlementsTotal,
		m.SettlementConflictRetries,
		m.ReconciliationRepairs,
		m.ReconciliationExpired,
		m.TransferRepairs,
		m.OTPIssuedTotal,
		m.OTPValidatedTotal,
		m.NotificationFailures,
	)

	return m
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ExposeHTTP 在独立端口上暴露 /metrics
func (m *Metrics) ExposeHTTP(port int, path string) {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "metrics server started", "addr", addr, "path", path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error(context.Background(), "metrics server stopped", "error", err)
	}
}

package metrics

import (
	"net/http"
	"time"
	"order_core/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器。所有方法对 nil 接收者安全，测试中可直接传 nil。
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 领域指标
	reservationsTotal *prometheus.CounterVec
	stockOpsTotal     *prometheus.CounterVec
	couponClaimsTotal *prometheus.CounterVec
	couponRetries     prometheus.Counter
	orderCommitsTotal *prometheus.CounterVec
	orderCommitTime   prometheus.Histogram
	balanceOpsTotal   *prometheus.CounterVec
	sweptTotal        *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器并注册到 reg
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		reservationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_reservations_total",
				Help: "Reservation attempts by result",
			},
			[]string{"result"},
		),

		stockOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_stock_operations_total",
				Help: "Stock ledger operations by kind and result",
			},
			[]string{"op", "result"},
		),

		couponClaimsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coupon_claims_total",
				Help: "Coupon claim attempts by result",
			},
			[]string{"result"},
		),

		couponRetries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "coupon_claim_retries_total",
				Help: "Claims that found no unlocked ticket on the first pass",
			},
		),

		orderCommitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_commits_total",
				Help: "Order commit attempts by result and the stage reached",
			},
			[]string{"result", "stage"},
		),

		orderCommitTime: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_commit_duration_seconds",
				Help:    "Order commit duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),

		balanceOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balance_operations_total",
				Help: "Balance ledger operations by kind and result",
			},
			[]string{"op", "result"},
		),

		sweptTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeper_reclaimed_total",
				Help: "Rows transitioned to EXPIRED by the sweeper",
			},
			[]string{"kind"},
		),
	}
}

// Result 把错误折叠成低基数的标签值
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apperr.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordReservation(err error) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(Result(err)).Inc()
}

func (m *MetricsCollector) RecordStockOp(op string, err error) {
	if m == nil {
		return
	}
	m.stockOpsTotal.WithLabelValues(op, Result(err)).Inc()
}

func (m *MetricsCollector) RecordCouponClaim(err error) {
	if m == nil {
		return
	}
	m.couponClaimsTotal.WithLabelValues(Result(err)).Inc()
}

func (m *MetricsCollector) RecordCouponRetry() {
	if m == nil {
		return
	}
	m.couponRetries.Inc()
}

// RecordOrderCommit stage 为失败时到达的状态，成功时为 COMMITTED
func (m *MetricsCollector) RecordOrderCommit(stage string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.orderCommitsTotal.WithLabelValues(Result(err), stage).Inc()
	m.orderCommitTime.Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordBalanceOp(op string, err error) {
	if m == nil {
		return
	}
	m.balanceOpsTotal.WithLabelValues(op, Result(err)).Inc()
}

func (m *MetricsCollector) RecordSwept(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.WithLabelValues(kind).Add(float64(n))
}

// Middleware gin 请求指标中间件，endpoint 使用路由模板避免高基数
func (m *MetricsCollector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < http.StatusInternalServerError:
		return "4xx"
	case status >= http.StatusInternalServerError:
		return "5xx"
	default:
		return "unknown"
	}
}

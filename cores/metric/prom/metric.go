package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//////////////////////////////////////
// codec/registry 监控指标
//////////////////////////////////////

const (
	OpEncode = "encode"
	OpDecode = "decode"
)

const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultPending = "pending"
)

var (
	codecFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiver",
		Subsystem: "codec",
		Name:      "frames_total",
		Help:      "Frames encoded or decoded, by message kind.",
	}, []string{"op", "kind"})

	codecErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiver",
		Subsystem: "codec",
		Name:      "errors_total",
		Help:      "Frames rejected by the codec, by reason.",
	}, []string{"op", "reason"})

	registryOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiver",
		Subsystem: "registry",
		Name:      "ops_total",
		Help:      "Registry operations, by operation and result.",
	}, []string{"op", "result"})

	failbackPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quiver",
		Subsystem: "registry",
		Name:      "failback_pending",
		Help:      "Registry operations waiting for a failback retry.",
	})

	notifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quiver",
		Subsystem: "registry",
		Name:      "notify_total",
		Help:      "Endpoint snapshots delivered to listeners.",
	})

	_registry = prometheus.NewRegistry()
)

func init() {
	_registry.MustRegister(codecFrames, codecErrors, registryOps, failbackPending, notifications)
	// 运行时及进程指标
	_registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Registry 指标注册表 可合并到进程的Gatherers
func Registry() *prometheus.Registry {
	return _registry
}

// Handler 指标http handler
func Handler() http.Handler {
	return promhttp.HandlerFor(_registry, promhttp.HandlerOpts{})
}

func CodecFrame(op string, kind string) {
	codecFrames.WithLabelValues(op, kind).Inc()
}

func CodecError(op string, reason string) {
	codecErrors.WithLabelValues(op, reason).Inc()
}

func RegistryOp(op string, result string) {
	registryOps.WithLabelValues(op, result).Inc()
}

func FailbackPending(n int) {
	failbackPending.Set(float64(n))
}

func Notify() {
	notifications.Inc()
}

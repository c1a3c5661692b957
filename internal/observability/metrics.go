package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	cachedAgents        prometheus.Gauge
	agentBuildTotal     prometheus.Counter
	agentCacheHitTotal  prometheus.Counter
	agentRebuildTotal   prometheus.Counter
	invokeTotal         *prometheus.CounterVec
	invokeDuration      prometheus.Histogram
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	cachedSessions      prometheus.Gauge

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	memoryOpTotal    *prometheus.CounterVec
	memoryOpDuration prometheus.Histogram
	memoryRecords    prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "queue_size",
					Help: "Current queue size by lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "enqueue_total",
					Help: "Total enqueue operations by lane.",
				},
				[]string{"lane"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dequeue_total",
					Help: "Total dequeue/completion operations by lane and status.",
				},
				[]string{"lane", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "task_duration_seconds",
					Help:    "Task execution duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
			cachedAgents: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cached_agents",
					Help: "Current number of cached per-user agents.",
				},
			),
			agentBuildTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agent_build_total",
					Help: "Total agent constructions.",
				},
			),
			agentCacheHitTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agent_cache_hit_total",
					Help: "Total agent cache hits.",
				},
			),
			agentRebuildTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agent_rebuild_total",
					Help: "Total forced agent rebuilds after transcript errors.",
				},
			),
			invokeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_invoke_total",
					Help: "Total model invocations by status.",
				},
				[]string{"status"},
			),
			invokeDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "model_invoke_duration_seconds",
					Help:    "Model invocation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session transcript load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session transcript append duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			cachedSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "cached_sessions",
					Help: "Current number of cached session handles.",
				},
			),
			dispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dispatch_total",
					Help: "Total capability dispatches by action and status.",
				},
				[]string{"action", "status"},
			),
			dispatchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "dispatch_duration_seconds",
					Help:    "Capability dispatch duration in seconds by action.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"action"},
			),
			memoryOpTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_op_total",
					Help: "Total long-term memory operations by action and status.",
				},
				[]string{"action", "status"},
			),
			memoryOpDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_op_duration_seconds",
					Help:    "Long-term memory operation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryRecords: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_records",
					Help: "Total long-term memory records stored.",
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.taskDuration,
			m.cachedAgents,
			m.agentBuildTotal,
			m.agentCacheHitTotal,
			m.agentRebuildTotal,
			m.invokeTotal,
			m.invokeDuration,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.cachedSessions,
			m.dispatchTotal,
			m.dispatchDuration,
			m.memoryOpTotal,
			m.memoryOpDuration,
			m.memoryRecords,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetQueueSize(lane string, queueSize int) {
	m := getMetrics()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dequeueTotal.WithLabelValues(lane, status).Inc()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetCachedAgents(count int) {
	getMetrics().cachedAgents.Set(float64(count))
}

func RecordAgentBuild() {
	getMetrics().agentBuildTotal.Inc()
}

func RecordAgentCacheHit() {
	getMetrics().agentCacheHitTotal.Inc()
}

func RecordAgentRebuild() {
	getMetrics().agentRebuildTotal.Inc()
}

func RecordModelInvoke(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.invokeTotal.WithLabelValues(status).Inc()
	m.invokeDuration.Observe(duration.Seconds())
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func SetCachedSessions(count int) {
	getMetrics().cachedSessions.Set(float64(count))
}

func RecordDispatch(action string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dispatchTotal.WithLabelValues(action, status).Inc()
	m.dispatchDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func RecordMemoryOp(action string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.memoryOpTotal.WithLabelValues(action, status).Inc()
	m.memoryOpDuration.Observe(duration.Seconds())
}

func SetMemoryRecords(total int) {
	getMetrics().memoryRecords.Set(float64(total))
}

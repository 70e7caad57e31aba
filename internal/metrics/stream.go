// Package metrics provides Prometheus metrics for the streaming pipeline.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camrelay"

var (
	encoderCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "cpu_percent",
		Help:      "Most recent CPU utilisation sample of the encoder process",
	})

	encoderRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "running",
		Help:      "1 while an encoder process is supervised",
	})

	encoderInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "info",
		Help:      "Parameters of the running encoder process",
	}, []string{"codec", "width", "height", "framerate", "bitrate_bps"})

	encoderProbeTrials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "encoder_trials_total",
		Help:      "Encoder trial encodes by codec and result",
	}, []string{"codec", "result"})

	resolutionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "resolution_attempts_total",
		Help:      "Snapshot capture attempts by result",
	}, []string{"result"})

	startupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "startup_failures_total",
		Help:      "Encoder processes that exited inside the startup grace window",
	})

	unexpectedExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "unexpected_exits_total",
		Help:      "Encoder processes that exited while not shutting down",
	}, []string{"exit_code"})

	excessiveCPU = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "excessive_cpu_total",
		Help:      "CPU samples above the configured threshold",
	})

	// Local cache for the status API.
	snapshotMu sync.RWMutex
	snapshot   Snapshot
)

// Snapshot holds the current values exposed by the status API.
type Snapshot struct {
	CPUPercent   float64
	SampledAt    time.Time
	Running      bool
	StartupFails int
	Unexpected   int
}

// ObserveCPU records a CPU sample.
func ObserveCPU(percent float64) {
	encoderCPUPercent.Set(percent)
	snapshotMu.Lock()
	snapshot.CPUPercent = percent
	snapshot.SampledAt = time.Now()
	snapshotMu.Unlock()
}

// IncExcessiveCPU counts a sample above the threshold.
func IncExcessiveCPU() {
	excessiveCPU.Inc()
}

// SetEncoderRunning publishes the running encoder parameters.
func SetEncoderRunning(codec string, width, height, framerate, bitrateBps int) {
	encoderInfo.Reset()
	encoderInfo.WithLabelValues(codec, strconv.Itoa(width), strconv.Itoa(height),
		strconv.Itoa(framerate), strconv.Itoa(bitrateBps)).Set(1)
	encoderRunning.Set(1)
	snapshotMu.Lock()
	snapshot.Running = true
	snapshotMu.Unlock()
}

// ClearEncoder resets the running encoder metrics.
func ClearEncoder() {
	encoderInfo.Reset()
	encoderRunning.Set(0)
	encoderCPUPercent.Set(0)
	snapshotMu.Lock()
	snapshot.Running = false
	snapshot.CPUPercent = 0
	snapshot.SampledAt = time.Time{}
	snapshotMu.Unlock()
}

// ObserveEncoderTrial counts one trial encode.
func ObserveEncoderTrial(codec string, ok bool) {
	encoderProbeTrials.WithLabelValues(codec, result(ok)).Inc()
}

// ObserveResolutionAttempt counts one snapshot capture attempt.
func ObserveResolutionAttempt(ok bool) {
	resolutionAttempts.WithLabelValues(result(ok)).Inc()
}

// IncStartupFailure counts a process that died in its grace window.
func IncStartupFailure() {
	startupFailures.Inc()
	snapshotMu.Lock()
	snapshot.StartupFails++
	snapshotMu.Unlock()
}

// IncUnexpectedExit counts a process that exited on its own.
func IncUnexpectedExit(exitCode int) {
	unexpectedExits.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	snapshotMu.Lock()
	snapshot.Unexpected++
	snapshotMu.Unlock()
}

// Current returns a copy of the cached values.
func Current() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

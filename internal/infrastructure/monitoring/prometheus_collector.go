package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	clientsConnected prometheus.Gauge
	previewsActive   prometheus.Gauge
	recordingsActive prometheus.Gauge

	// Counters
	framesRelayedTotal  prometheus.Counter
	frameBytesTotal     prometheus.Counter
	framesDroppedTotal  prometheus.Counter
	audioSamplesTotal   prometheus.Counter
	unknownSourcesTotal prometheus.Counter

	// Histograms
	commandDuration *prometheus.HistogramVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		clientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_clients_connected",
			Help: "Number of agents with a live WebSocket connection",
		}),

		previewsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_previews_active",
			Help: "Number of active preview sessions",
		}),

		recordingsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_recordings_active",
			Help: "Number of active recording sessions",
		}),

		framesRelayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_frames_relayed_total",
			Help: "Total number of preview frames delivered to viewers",
		}),

		frameBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_frame_bytes_total",
			Help: "Total payload bytes of preview frames delivered to viewers",
		}),

		framesDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_frames_dropped_total",
			Help: "Total number of preview frames dropped by rate caps or congestion",
		}),

		audioSamplesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_audio_samples_total",
			Help: "Total number of audio level samples routed",
		}),

		unknownSourcesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_audio_unknown_source_total",
			Help: "Total number of audio samples dropped for an unknown source tag",
		}),

		commandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camfleet_command_duration_seconds",
			Help:    "Round-trip duration of agent commands",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"command", "outcome"}),
	}
}

func (p *PrometheusCollector) RecordClientConnected() {
	p.clientsConnected.Inc()
}

func (p *PrometheusCollector) RecordClientDisconnected() {
	p.clientsConnected.Dec()
}

func (p *PrometheusCollector) RecordCommand(command string, duration time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	p.commandDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordFrameRelayed(bytes int) {
	p.framesRelayedTotal.Inc()
	p.frameBytesTotal.Add(float64(bytes))
}

func (p *PrometheusCollector) RecordFrameDropped() {
	p.framesDroppedTotal.Inc()
}

func (p *PrometheusCollector) RecordPreviewStarted() {
	p.previewsActive.Inc()
}

func (p *PrometheusCollector) RecordPreviewStopped() {
	p.previewsActive.Dec()
}

func (p *PrometheusCollector) RecordRecordingStarted() {
	p.recordingsActive.Inc()
}

func (p *PrometheusCollector) RecordRecordingStopped() {
	p.recordingsActive.Dec()
}

func (p *PrometheusCollector) RecordAudioSample() {
	p.audioSamplesTotal.Inc()
}

func (p *PrometheusCollector) RecordUnknownAudioSource() {
	p.unknownSourcesTotal.Inc()
}

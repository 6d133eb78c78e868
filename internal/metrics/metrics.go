package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus instrumentation for the conversation engine.
type Metrics struct {
	SessionsStarted     prometheus.Counter
	SessionActive       prometheus.Gauge
	FramesSent          prometheus.Counter
	MessagesReceived    prometheus.Counter
	BuffersScheduled    prometheus.Counter
	Interruptions       prometheus.Counter
	TurnsCompleted      prometheus.Counter
	TranslationFailures prometheus.Counter
	TransportErrors     prometheus.Counter
}

// New creates and registers all engine metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_sessions_started_total",
			Help: "Total number of conversation sessions started",
		}),
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lingua_session_active",
			Help: "Whether a conversation session is currently active",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_audio_frames_sent_total",
			Help: "Total number of captured audio frames transmitted",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_server_messages_received_total",
			Help: "Total number of push messages received from the live service",
		}),
		BuffersScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_playback_buffers_scheduled_total",
			Help: "Total number of decoded audio buffers handed to the playback scheduler",
		}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_interruptions_total",
			Help: "Total number of barge-in interruption signals handled",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_turns_completed_total",
			Help: "Total number of transcript turns committed",
		}),
		TranslationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_translation_failures_total",
			Help: "Total number of turn translations that failed",
		}),
		TransportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingua_transport_errors_total",
			Help: "Total number of mid-session transport failures",
		}),
	}
}

// Handler exposes the given gatherer over HTTP for the optional debug listener.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

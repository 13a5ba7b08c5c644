package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "sessions",
		Name:      "live",
		Help:      "Registered inference sessions",
	})

	sessionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "sessions",
			Name:      "opened_total",
			Help:      "Sessions opened",
		},
		[]string{"model"},
	)

	sessionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "sessions",
		Name:      "closed_total",
		Help:      "Sessions closed by clients",
	})

	sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "sessions",
		Name:      "expired_total",
		Help:      "Sessions removed after their TTL elapsed",
	})

	sessionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "sessions",
		Name:      "rejected_total",
		Help:      "Session opens refused for capacity",
	})

	generateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Duration of generate requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "outcome"},
	)

	generatedTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "generate",
			Name:      "tokens_total",
			Help:      "Tokens produced by the engine",
		},
		[]string{"model"},
	)

	engineSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "generate",
			Name:      "engine_steps_total",
			Help:      "Engine generate calls",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(sessionsLive, sessionsOpened, sessionsClosed, sessionsExpired, sessionsRejected,
		generateDuration, generatedTokens, engineSteps)
}

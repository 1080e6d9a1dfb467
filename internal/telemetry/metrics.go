// Package telemetry exposes bot activity as Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"guildbot/internal/eventbus"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	MessagesTotal        *prometheus.CounterVec
	ReactionsTotal       *prometheus.CounterVec
	ModerationTotal      *prometheus.CounterVec
	LevelUpsTotal        prometheus.Counter
	CommandsTotal        *prometheus.CounterVec
	GatewayRequestsTotal *prometheus.CounterVec
	GatewayRetriesTotal  *prometheus.CounterVec
	GatewayDurationMs    *prometheus.HistogramVec
	ErrorsTotal          *prometheus.CounterVec
	ChannelUp            *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_messages_total",
			Help: "Inbound chat messages from non-bot users.",
		}, []string{"channel"}),

		ReactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_reactions_total",
			Help: "Reactions added by non-bot users.",
		}, []string{"channel"}),

		ModerationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_moderation_total",
			Help: "Messages that violated the content rule.",
		}, []string{"deleted"}),

		LevelUpsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "guildbot_level_ups_total",
			Help: "Level-ups awarded.",
		}),

		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_commands_total",
			Help: "Chat commands handled.",
		}, []string{"command", "status"}),

		GatewayRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_gateway_requests_total",
			Help: "AI gateway invocations by provider, caller role and outcome.",
		}, []string{"provider", "role", "outcome"}),

		GatewayRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_gateway_retries_total",
			Help: "Invocations that went through a session reset and retry.",
		}, []string{"provider"}),

		GatewayDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guildbot_gateway_duration_ms",
			Help:    "AI gateway invocation latency in milliseconds, including retries.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"provider"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_errors_total",
			Help: "Errors reported by bot components.",
		}, []string{"source"}),

		ChannelUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guildbot_channel_up",
			Help: "Whether a chat transport is running (1) or stopped (0).",
		}, []string{"channel"}),
	}
}

// Attach subscribes the metrics to bus events. The returned subscriptions
// can be passed to Unsubscribe.
func (m *Metrics) Attach(bus *eventbus.Bus) []eventbus.Subscription {
	return []eventbus.Subscription{
		bus.Subscribe(eventbus.TopicMessage, m.onMessage),
		bus.Subscribe(eventbus.TopicReaction, m.onReaction),
		bus.Subscribe(eventbus.TopicModeration, m.onModeration),
		bus.Subscribe(eventbus.TopicLevelUp, m.onLevelUp),
		bus.Subscribe(eventbus.TopicCommand, m.onCommand),
		bus.Subscribe(eventbus.TopicGatewayResult, m.onGatewayResult),
		bus.Subscribe(eventbus.TopicError, m.onError),
		bus.Subscribe(eventbus.TopicStatusChange, m.onStatus),
	}
}

func (m *Metrics) onMessage(ev eventbus.Event) {
	if p, ok := ev.Payload.(eventbus.MessagePayload); ok {
		m.MessagesTotal.WithLabelValues(p.Channel).Inc()
	}
}

func (m *Metrics) onReaction(ev eventbus.Event) {
	if p, ok := ev.Payload.(eventbus.ReactionPayload); ok {
		m.ReactionsTotal.WithLabelValues(p.Channel).Inc()
	}
}

func (m *Metrics) onModeration(ev eventbus.Event) {
	if p, ok := ev.Payload.(eventbus.ModerationPayload); ok {
		m.ModerationTotal.WithLabelValues(boolLabel(p.Deleted)).Inc()
	}
}

func (m *Metrics) onLevelUp(ev eventbus.Event) {
	if _, ok := ev.Payload.(eventbus.LevelUpPayload); ok {
		m.LevelUpsTotal.Inc()
	}
}

func (m *Metrics) onCommand(ev eventbus.Event) {
	p, ok := ev.Payload.(eventbus.CommandPayload)
	if !ok {
		return
	}
	status := "ok"
	if p.Err != nil {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(p.Name, status).Inc()
}

func (m *Metrics) onGatewayResult(ev eventbus.Event) {
	p, ok := ev.Payload.(eventbus.GatewayResultPayload)
	if !ok {
		return
	}
	m.GatewayRequestsTotal.WithLabelValues(p.Provider, p.Role, p.Outcome).Inc()
	if p.Retried {
		m.GatewayRetriesTotal.WithLabelValues(p.Provider).Inc()
	}
	m.GatewayDurationMs.WithLabelValues(p.Provider).Observe(float64(p.Duration.Milliseconds()))
}

func (m *Metrics) onError(ev eventbus.Event) {
	if p, ok := ev.Payload.(eventbus.ErrorPayload); ok {
		m.ErrorsTotal.WithLabelValues(p.Source).Inc()
	}
}

func (m *Metrics) onStatus(ev eventbus.Event) {
	p, ok := ev.Payload.(eventbus.StatusPayload)
	if !ok {
		return
	}
	v := 0.0
	if p.Running {
		v = 1
	}
	m.ChannelUp.WithLabelValues(p.Component).Set(v)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

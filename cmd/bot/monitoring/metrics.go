package monitoring

import (
	"fmt"

	"github.com/Jacobbrewer1/ticketbot/cmd/bot/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalDiscordEvents is the number of gateway events received, by type.
	TotalDiscordEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_total_discord_events", config.AppName),
			Help: "Gateway events received",
		},
		[]string{"event"},
	)

	// HttpTotalRequests is the number of requests served by the monitoring server.
	HttpTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_total_requests", config.AppName),
			Help: "Requests served by the monitoring server",
		},
		[]string{"path", "method", "status_code"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_http_request_duration", config.AppName),
			Help: "Duration of monitoring server requests in seconds",
		},
		[]string{"path", "method", "status_code"},
	)

	// TotalDiscordGuilds is the number of guilds the bot is in.
	TotalDiscordGuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_total_discord_guilds", config.AppName),
			Help: "Guilds the bot is in",
		},
	)

	// DiscordCommandDuration is the duration of a command, by how it was invoked.
	DiscordCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_discord_command_duration", config.AppName),
			Help:    "Duration of commands in seconds, including confirmation waits",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 15, 30, 60, 120},
		},
		[]string{"command", "source"},
	)

	// DiscordCommandFailures is the number of commands that did not succeed, by reason.
	DiscordCommandFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_discord_command_failures", config.AppName),
			Help: "Commands that did not succeed",
		},
		[]string{"command", "reason"},
	)
)

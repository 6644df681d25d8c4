package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsCreated is the number of ticket records created.
	TicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_created_total",
			Help: "Total number of tickets created",
		},
	)

	// TicketsClosed is the number of tickets moved to a terminal status.
	TicketsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_closed_total",
			Help: "Total number of tickets closed, by resolved status",
		},
		[]string{"status"},
	)

	// Confirmations is the outcome of close confirmations.
	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_close_confirmations_total",
			Help: "Outcome of close confirmations, by protocol",
		},
		[]string{"protocol", "outcome"},
	)

	// Operations is the result of lifecycle operations.
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_operations_total",
			Help: "Total number of ticket operations, by result",
		},
		[]string{"operation", "result"},
	)
)

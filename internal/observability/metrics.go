package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalTransitions counts proposal state transitions by target state.
	ProposalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_proposal_transitions_total",
		Help: "Total number of proposal state transitions by target state",
	}, []string{"to_state"})

	// TeamTransitions counts team state transitions by target state.
	TeamTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_team_transitions_total",
		Help: "Total number of team state transitions by target state",
	}, []string{"to_state"})

	// CreditsMoved counts credits moved through the ledger by reason.
	CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_credits_moved_total",
		Help: "Total credits moved through the ledger by reason",
	}, []string{"reason"})

	// InsufficientFundsRejections counts ledger debits refused for lack of balance.
	InsufficientFundsRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillbarter_insufficient_funds_total",
		Help: "Total number of debits refused because the balance would go negative",
	})

	// OutboxDispatched counts outbox events delivered, by outcome.
	OutboxDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_outbox_dispatched_total",
		Help: "Total outbox events processed by the dispatcher, by outcome",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillbarter_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client
	// send buffer was full or closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_websocket_backpressure_drops_total",
		Help: "Total WebSocket messages dropped due to backpressure, by reason",
	}, []string{"hub", "reason"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

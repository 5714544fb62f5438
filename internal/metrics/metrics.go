package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages persisted through the REST send endpoint.",
	})
	BroadcastsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_delivered_total",
		Help: "receiveMessage events enqueued to room members.",
	})
	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_dropped_total",
		Help: "receiveMessage events dropped because a client send buffer was full.",
	})
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections_active",
		Help: "Currently authenticated websocket connections.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

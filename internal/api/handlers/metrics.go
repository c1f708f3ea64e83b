package handlers

import (
	"fmt"
	"net/http"

	"hookbin/internal/engine/events"
)

// MetricsHandler exports plain-text gauges, mainly the live subscriber count
// per bus topic.
type MetricsHandler struct {
	bus *events.Bus
}

func NewMetricsHandler(bus *events.Bus) *MetricsHandler {
	return &MetricsHandler{bus: bus}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "# HELP hookbin_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE hookbin_up gauge\n")
	fmt.Fprintf(w, "hookbin_up 1\n")

	fmt.Fprintf(w, "# HELP hookbin_bus_subscribers Live subscriptions per topic\n")
	fmt.Fprintf(w, "# TYPE hookbin_bus_subscribers gauge\n")
	for topic, count := range h.bus.SubscriberCount() {
		fmt.Fprintf(w, "hookbin_bus_subscribers{topic=%q} %d\n", string(topic), count)
	}
}

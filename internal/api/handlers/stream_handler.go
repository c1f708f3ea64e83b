package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hookbin/internal/engine/events"
	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/errors"
	"hookbin/internal/platform/config"
)

// StreamHandler serves live webhook events over Server-Sent Events. Each
// connection is one filtered subscription: scoped to a single endpoint,
// re-authorized per event, and unregistered from the bus the moment the
// client goes away.
type StreamHandler struct {
	service *hooks.Service
	bus     *events.Bus
	cfg     config.BusConfig
}

func NewStreamHandler(service *hooks.Service, bus *events.Bus, cfg config.BusConfig) *StreamHandler {
	return &StreamHandler{service: service, bus: bus, cfg: cfg}
}

var streamTopics = map[string]events.Topic{
	"created": events.TopicWebhookCreated,
	"updated": events.TopicWebhookUpdated,
	"deleted": events.TopicWebhookDeleted,
}

func (h *StreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	user := principal(r)

	endpointID, ok := pathID(r, "endpoint_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Endpoint id must be an integer", nil)
		return
	}

	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	// Cheap reject before any bus registration; the per-event predicate
	// repeats the precise check for as long as the stream lives.
	if err := h.service.AuthorizeEndpoint(r.Context(), user, endpointID); err != nil {
		errors.WriteFromError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Streaming not supported", nil)
		return
	}

	sub := events.Subscribe(r.Context(), h.bus, topics, h.service.StreamPredicate(endpointID, user))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug().Int64("endpoint_id", endpointID).Int64("user_id", user.ID).Msg("stream opened")

	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-sub.Events():
			if !open {
				if err := sub.Err(); err != nil {
					log.Error().Err(err).Int64("endpoint_id", endpointID).Msg("stream closed on predicate failure")
					fmt.Fprint(w, "event: error\ndata: {\"message\":\"stream terminated\"}\n\n")
					flusher.Flush()
				}
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Msg("marshal stream event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic(), payload)
			flusher.Flush()
		}
	}
}

// parseTopics maps the comma-separated topics parameter to bus topics. An
// empty parameter subscribes to all three.
func parseTopics(raw string) ([]events.Topic, error) {
	if raw == "" {
		return []events.Topic{
			events.TopicWebhookCreated,
			events.TopicWebhookUpdated,
			events.TopicWebhookDeleted,
		}, nil
	}

	var topics []events.Topic
	for _, name := range strings.Split(raw, ",") {
		topic, ok := streamTopics[strings.TrimSpace(strings.ToLower(name))]
		if !ok {
			return nil, fmt.Errorf("unknown topic %q", name)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

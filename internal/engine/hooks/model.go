package hooks

import (
	"strings"

	"hookbin/internal/engine/events"
)

// KeyValue is one header or query pair. Pairs are stored as ordered JSON
// arrays so duplicate keys and original ordering survive a round trip.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Webhook is one HTTP request captured at an endpoint. Immutable after
// capture except for the read flag and deletion.
//
// The read flag is global per webhook, not per viewer: storage only ever keys
// it by webhook id.
type Webhook struct {
	ID          int64      `json:"id"`
	EndpointID  int64      `json:"endpoint_id"`
	CreatedAt   int64      `json:"created_at"`
	Read        bool       `json:"read"`
	Method      string     `json:"method"`
	Path        string     `json:"path"`
	SourceIP    string     `json:"source_ip,omitempty"`
	Headers     []KeyValue `json:"headers"`
	Query       []KeyValue `json:"query"`
	ContentType string     `json:"content_type,omitempty"`
	Body        string     `json:"body,omitempty"`
}

// Endpoint is an inspectable inbox. Token is the public capture URL segment;
// access for authenticated users goes through the endpoint_users relation.
type Endpoint struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	CreatedAt int64  `json:"created_at"`
}

// Forward records one attempt to relay a captured webhook to a destination
// URL. Never mutated; deleted only by the owning webhook's cascade.
type Forward struct {
	ID          int64      `json:"id"`
	WebhookID   int64      `json:"webhook_id"`
	UserID      int64      `json:"user_id"`
	CreatedAt   int64      `json:"created_at"`
	URL         string     `json:"url"`
	Method      string     `json:"method"`
	StatusCode  int        `json:"status_code"`
	Success     bool       `json:"success"`
	Headers     []KeyValue `json:"headers"`
	Query       []KeyValue `json:"query"`
	ContentType string     `json:"content_type,omitempty"`
	Body        string     `json:"body,omitempty"`
}

// forwardSuccess is recomputed on every read, never stored, so it cannot
// drift from the status code.
func forwardSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// ExtractContentType returns the media type of the content-type header pair,
// without parameters, or "" when absent.
func ExtractContentType(headers []KeyValue) string {
	for _, kv := range headers {
		if strings.EqualFold(kv.Key, "Content-Type") {
			mediaType, _, _ := strings.Cut(kv.Value, ";")
			return strings.TrimSpace(mediaType)
		}
	}
	return ""
}

// Bus payloads. Wire keys follow the subscription API contract.

type WebhookCreatedEvent struct {
	Webhook  *Webhook  `json:"webhook"`
	Endpoint *Endpoint `json:"endpoint"`
}

func (e WebhookCreatedEvent) Topic() events.Topic { return events.TopicWebhookCreated }
func (e WebhookCreatedEvent) EndpointID() int64   { return e.Endpoint.ID }

type WebhookUpdatedEvent struct {
	Webhook  *Webhook  `json:"webhook"`
	Endpoint *Endpoint `json:"endpoint"`
}

func (e WebhookUpdatedEvent) Topic() events.Topic { return events.TopicWebhookUpdated }
func (e WebhookUpdatedEvent) EndpointID() int64   { return e.Endpoint.ID }

type WebhooksDeletedEvent struct {
	AffectedRows int64     `json:"affectedRowCount"`
	WebhookIDs   []int64   `json:"webhookIds"`
	Endpoint     *Endpoint `json:"endpoint"`
}

func (e WebhooksDeletedEvent) Topic() events.Topic { return events.TopicWebhookDeleted }
func (e WebhooksDeletedEvent) EndpointID() int64   { return e.Endpoint.ID }

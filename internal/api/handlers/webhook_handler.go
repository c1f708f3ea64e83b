package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "hookbin/internal/api/context"
	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/errors"
	"hookbin/internal/platform/models"
)

type WebhookHandler struct {
	service *hooks.Service
	relayer *hooks.Relayer
}

func NewWebhookHandler(service *hooks.Service, relayer *hooks.Relayer) *WebhookHandler {
	return &WebhookHandler{service: service, relayer: relayer}
}

func principal(r *http.Request) *models.User {
	user, _ := r.Context().Value(apiContext.Principal).(*models.User)
	return user
}

// pathID normalizes a path segment to an integer id. Ids always arrive as
// strings at the transport boundary; anything non-integer is rejected before
// it can reach a store.
func pathID(r *http.Request, name string) (int64, bool) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	id, err := strconv.ParseInt(params.ByName(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhookID, ok := pathID(r, "webhook_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Webhook id must be an integer", nil)
		return
	}

	webhook, err := h.service.GetWebhook(r.Context(), principal(r), webhookID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathID(r, "endpoint_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Endpoint id must be an integer", nil)
		return
	}

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		var err error
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "after cursor must be an integer", nil)
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	webhooks, err := h.service.ListWebhooks(r.Context(), principal(r), endpointID, after, limit)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	if webhooks == nil {
		webhooks = []*hooks.Webhook{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Webhooks []*hooks.Webhook `json:"webhooks"`
	}{webhooks})
}

func (h *WebhookHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	webhookID, ok := pathID(r, "webhook_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Webhook id must be an integer", nil)
		return
	}

	webhook, err := h.service.MarkRead(r.Context(), principal(r), webhookID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Webhook *hooks.Webhook `json:"webhook"`
	}{webhook})
}

type deleteWebhooksRequest struct {
	WebhookIDs []int64 `json:"webhook_ids"`
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	endpointID, ok := pathID(r, "endpoint_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Endpoint id must be an integer", nil)
		return
	}

	var req deleteWebhooksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	affected, err := h.service.DeleteWebhooks(r.Context(), principal(r), endpointID, req.WebhookIDs)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		AffectedRows int64   `json:"affectedRowCount"`
		WebhookIDs   []int64 `json:"webhookIds"`
	}{affected, req.WebhookIDs})
}

type addForwardRequest struct {
	URL        string           `json:"url"`
	Method     string           `json:"method"`
	StatusCode int              `json:"status_code"`
	Headers    []hooks.KeyValue `json:"headers"`
	Query      []hooks.KeyValue `json:"query"`
	Body       string           `json:"body"`
}

func (h *WebhookHandler) AddForward(w http.ResponseWriter, r *http.Request) {
	webhookID, ok := pathID(r, "webhook_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Webhook id must be an integer", nil)
		return
	}

	var req addForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.URL == "" || req.Method == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "url and method are required", nil)
		return
	}

	forward, webhook, err := h.service.AddForward(r.Context(), principal(r), hooks.AddForwardInput{
		WebhookID:  webhookID,
		URL:        req.URL,
		Method:     req.Method,
		StatusCode: req.StatusCode,
		Headers:    req.Headers,
		Query:      req.Query,
		Body:       req.Body,
	})
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		Forward *hooks.Forward `json:"forward"`
		Webhook *hooks.Webhook `json:"webhook"`
	}{forward, webhook})
}

func (h *WebhookHandler) ListForwards(w http.ResponseWriter, r *http.Request) {
	webhookID, ok := pathID(r, "webhook_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Webhook id must be an integer", nil)
		return
	}

	forwards, err := h.service.ListForwards(r.Context(), principal(r), webhookID)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}
	if forwards == nil {
		forwards = []*hooks.Forward{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Forwards []*hooks.Forward `json:"forwards"`
	}{forwards})
}

type relayRequest struct {
	URL string `json:"url"`
}

func (h *WebhookHandler) Relay(w http.ResponseWriter, r *http.Request) {
	webhookID, ok := pathID(r, "webhook_id")
	if !ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidOperation, "Webhook id must be an integer", nil)
		return
	}

	var req relayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "url is required", nil)
		return
	}

	forward, webhook, err := h.relayer.Relay(r.Context(), principal(r), webhookID, req.URL)
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		Forward *hooks.Forward `json:"forward"`
		Webhook *hooks.Webhook `json:"webhook"`
	}{forward, webhook})
}

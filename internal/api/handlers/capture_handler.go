package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "hookbin/internal/api/context"
	"hookbin/internal/engine/hooks"
	"hookbin/internal/pkg/errors"
	"hookbin/internal/platform/config"
)

// CaptureHandler is the public front door: any request to /in/:token is
// snapshotted into a webhook on the endpoint the token resolves to. No
// authentication; the token is the capability.
type CaptureHandler struct {
	service *hooks.Service
	cfg     config.CaptureConfig
}

func NewCaptureHandler(service *hooks.Service, cfg config.CaptureConfig) *CaptureHandler {
	return &CaptureHandler{service: service, cfg: cfg}
}

func (h *CaptureHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	token := params.ByName("token")

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Failed to read request body", nil)
		return
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		errors.WriteError(w, http.StatusRequestEntityTooLarge, errors.ErrCodePayloadTooLarge, "Request body too large", nil)
		return
	}

	webhook, err := h.service.Capture(r.Context(), token, hooks.CaptureInput{
		Method:      r.Method,
		Path:        r.URL.Path,
		SourceIP:    sourceIP(r, h.cfg.TrustForwardedFor),
		Headers:     headerPairs(r.Header),
		Query:       queryPairs(r.URL.RawQuery),
		ContentType: hooks.ExtractContentType([]hooks.KeyValue{{Key: "Content-Type", Value: r.Header.Get("Content-Type")}}),
		Body:        string(body),
	})
	if err != nil {
		errors.WriteFromError(w, err)
		return
	}

	log.Debug().Str("token", token).Int64("webhook_id", webhook.ID).Msg("capture accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		ID int64 `json:"id"`
	}{webhook.ID})
}

// sourceIP picks the client address. X-Forwarded-For is only honored when the
// deployment declares a trusted proxy in front; otherwise the socket address
// wins. Only the first element of a comma-separated list counts.
func sourceIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	addr, _, _ := strings.Cut(r.RemoteAddr, ",")
	host := strings.TrimSpace(addr)
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}

func headerPairs(header http.Header) []hooks.KeyValue {
	keys := make([]string, 0, len(header))
	for key := range header {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []hooks.KeyValue
	for _, key := range keys {
		for _, value := range header[key] {
			pairs = append(pairs, hooks.KeyValue{Key: key, Value: value})
		}
	}
	return pairs
}

func queryPairs(rawQuery string) []hooks.KeyValue {
	if rawQuery == "" {
		return nil
	}

	var pairs []hooks.KeyValue
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		pairs = append(pairs, hooks.KeyValue{Key: key, Value: value})
	}
	return pairs
}

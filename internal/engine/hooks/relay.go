package hooks

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "hookbin/internal/pkg/errors"
	"hookbin/internal/pkg/validator"
	"hookbin/internal/platform/models"
)

// Relayer replays a captured webhook against a user-chosen destination URL
// and records the outcome as a Forward through the normal AddForward path.
type Relayer struct {
	service *Service
	client  *http.Client
}

func NewRelayer(service *Service) *Relayer {
	return &Relayer{
		service: service,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// hop-by-hop and transport-owned headers that must not be replayed
var skipHeaders = map[string]struct{}{
	"host":              {},
	"connection":        {},
	"content-length":    {},
	"transfer-encoding": {},
	"keep-alive":        {},
	"upgrade":           {},
}

// Relay sends the captured request to destURL with the original method,
// replayable headers and body, then records the response status as a
// Forward. The relay target's response body is not retained.
func (r *Relayer) Relay(ctx context.Context, principal *models.User, webhookID int64, destURL string) (*Forward, *Webhook, error) {
	if err := validator.ValidateDestination(destURL); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInvalidOperation, "%v", err)
	}

	webhook, err := r.service.GetWebhook(ctx, principal, webhookID)
	if err != nil {
		return nil, nil, err
	}

	method := webhook.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, destURL, strings.NewReader(webhook.Body))
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInvalidOperation, "bad destination url: %v", err)
	}
	for _, kv := range webhook.Headers {
		if _, skip := skipHeaders[strings.ToLower(kv.Key)]; skip {
			continue
		}
		req.Header.Add(kv.Key, kv.Value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInvalidOperation, "relay to %s failed: %v", destURL, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return r.service.AddForward(ctx, principal, AddForwardInput{
		WebhookID:  webhookID,
		URL:        destURL,
		Method:     method,
		StatusCode: resp.StatusCode,
		Headers:    webhook.Headers,
		Query:      webhook.Query,
		Body:       webhook.Body,
	})
}

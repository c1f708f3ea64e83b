package hooks

import (
	"context"

	"github.com/rs/zerolog/log"

	"hookbin/internal/engine/events"
	"hookbin/internal/platform/models"
)

// Service runs the write paths. Every mutation follows the same straight
// line: authorize, mutate storage, reload the denormalized view, publish.
// The storage commit always lands before the publish, so a subscriber that
// receives an event can immediately re-query and observe the new state.
// Publishing is best-effort and never fails a mutation whose write already
// committed.
type Service struct {
	webhooks  *WebhookRepository
	endpoints *EndpointRepository
	forwards  *ForwardRepository
	authz     *Authorizer
	bus       *events.Bus
}

func NewService(webhooks *WebhookRepository, endpoints *EndpointRepository, forwards *ForwardRepository, bus *events.Bus) *Service {
	return &Service{
		webhooks:  webhooks,
		endpoints: endpoints,
		forwards:  forwards,
		authz:     NewAuthorizer(webhooks, endpoints),
		bus:       bus,
	}
}

func (s *Service) Authorizer() *Authorizer { return s.authz }

type CaptureInput struct {
	Method      string
	Path        string
	SourceIP    string
	Headers     []KeyValue
	Query       []KeyValue
	ContentType string
	Body        string
}

// Capture is the ingestion front door: it snapshots an inbound request on the
// endpoint identified by its public token and announces it on the bus.
func (s *Service) Capture(ctx context.Context, token string, in CaptureInput) (*Webhook, error) {
	endpoint, err := s.endpoints.GetByToken(token)
	if err != nil {
		return nil, err
	}

	webhook := &Webhook{
		EndpointID:  endpoint.ID,
		Method:      in.Method,
		Path:        in.Path,
		SourceIP:    in.SourceIP,
		Headers:     in.Headers,
		Query:       in.Query,
		ContentType: in.ContentType,
		Body:        in.Body,
	}
	if err := s.webhooks.Insert(webhook); err != nil {
		return nil, err
	}

	log.Debug().Int64("webhook_id", webhook.ID).Int64("endpoint_id", endpoint.ID).Msg("captured webhook")

	s.bus.Publish(WebhookCreatedEvent{Webhook: webhook, Endpoint: endpoint})
	return webhook, nil
}

type AddForwardInput struct {
	WebhookID  int64
	URL        string
	Method     string
	StatusCode int
	Headers    []KeyValue
	Query      []KeyValue
	Body       string
}

// AddForward records the result of relaying a webhook to a destination URL
// and announces the owning webhook as updated.
func (s *Service) AddForward(ctx context.Context, principal *models.User, in AddForwardInput) (*Forward, *Webhook, error) {
	if err := Chain(ctx,
		Authenticated(principal),
		s.authz.WebhookAllowed(principal, in.WebhookID),
	); err != nil {
		return nil, nil, err
	}

	forward := &Forward{
		WebhookID:   in.WebhookID,
		UserID:      principal.ID,
		URL:         in.URL,
		Method:      in.Method,
		StatusCode:  in.StatusCode,
		Headers:     in.Headers,
		Query:       in.Query,
		ContentType: ExtractContentType(in.Headers),
		Body:        in.Body,
	}
	if err := s.forwards.Insert(forward); err != nil {
		return nil, nil, err
	}

	webhook, err := s.webhooks.FindByID(forward.WebhookID)
	if err != nil {
		return nil, nil, err
	}
	endpoint, err := s.endpoints.FindByWebhookID(webhook.ID)
	if err != nil {
		return nil, nil, err
	}

	s.bus.Publish(WebhookUpdatedEvent{Webhook: webhook, Endpoint: endpoint})
	return forward, webhook, nil
}

// MarkRead flips a webhook's read flag and announces the update.
func (s *Service) MarkRead(ctx context.Context, principal *models.User, webhookID int64) (*Webhook, error) {
	if err := Chain(ctx,
		Authenticated(principal),
		s.authz.WebhookAllowed(principal, webhookID),
	); err != nil {
		return nil, err
	}

	if _, err := s.webhooks.UpdateRead(webhookID, principal.ID, true); err != nil {
		return nil, err
	}

	webhook, err := s.webhooks.FindByID(webhookID)
	if err != nil {
		return nil, err
	}
	endpoint, err := s.endpoints.FindByWebhookID(webhook.ID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(WebhookUpdatedEvent{Webhook: webhook, Endpoint: endpoint})
	return webhook, nil
}

// DeleteWebhooks bulk-deletes webhooks of one endpoint. The store constrains
// the delete to the endpoint and the principal's entitlements; ids that fall
// outside simply do not count toward the affected rows.
func (s *Service) DeleteWebhooks(ctx context.Context, principal *models.User, endpointID int64, webhookIDs []int64) (int64, error) {
	if err := Chain(ctx, Authenticated(principal)); err != nil {
		return 0, err
	}

	affected, err := s.webhooks.DeleteWebhooks(principal.ID, endpointID, webhookIDs)
	if err != nil {
		return 0, err
	}

	endpoint, err := s.endpoints.GetByID(endpointID)
	if err != nil {
		return 0, err
	}

	log.Info().Int64("endpoint_id", endpointID).Int64("affected", affected).Msg("deleted webhooks")

	s.bus.Publish(WebhooksDeletedEvent{
		AffectedRows: affected,
		WebhookIDs:   webhookIDs,
		Endpoint:     endpoint,
	})
	return affected, nil
}

// GetWebhook is the guarded single-row read.
func (s *Service) GetWebhook(ctx context.Context, principal *models.User, webhookID int64) (*Webhook, error) {
	if err := Chain(ctx,
		Authenticated(principal),
		s.authz.WebhookAllowed(principal, webhookID),
	); err != nil {
		return nil, err
	}
	return s.webhooks.FindByID(webhookID)
}

// ListWebhooks pages an endpoint's webhooks, newest first.
func (s *Service) ListWebhooks(ctx context.Context, principal *models.User, endpointID, after int64, limit int) ([]*Webhook, error) {
	if err := Chain(ctx,
		Authenticated(principal),
		s.authz.EndpointAllowed(principal, endpointID),
	); err != nil {
		return nil, err
	}
	return s.webhooks.FindPage(endpointID, after, limit)
}

// ListForwards returns a webhook's relay history through the batched lookup.
func (s *Service) ListForwards(ctx context.Context, principal *models.User, webhookID int64) ([]*Forward, error) {
	if err := Chain(ctx,
		Authenticated(principal),
		s.authz.WebhookAllowed(principal, webhookID),
	); err != nil {
		return nil, err
	}
	return s.forwards.FindByWebhookID(webhookID)
}

// StreamPredicate is the per-event filter for a live subscription: the event
// must belong to the requested endpoint and the principal must still be in
// its authorized set at delivery time. A negative or auth-shaped outcome
// skips the event; a storage failure is a hard error that ends the stream.
func (s *Service) StreamPredicate(endpointID int64, principal *models.User) events.Predicate {
	return func(ctx context.Context, ev events.Event) (bool, error) {
		if ev.EndpointID() != endpointID {
			return false, nil
		}

		ok, err := s.endpoints.IsEndpointUser(endpointID, principal.ID)
		if err != nil {
			if IsAuthError(err) {
				return false, nil
			}
			return false, err
		}
		return ok, nil
	}
}

// AuthorizeEndpoint checks endpoint membership once. Subscriptions use it as
// the cheap subscribe-time reject; the precise check stays per-event.
func (s *Service) AuthorizeEndpoint(ctx context.Context, principal *models.User, endpointID int64) error {
	return Chain(ctx,
		Authenticated(principal),
		s.authz.EndpointAllowed(principal, endpointID),
	)
}

package hooks

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "hookbin/internal/pkg/errors"

	"hookbin/internal/engine/events"
)

func newTestService(t *testing.T) (*Service, *sql.DB, *events.Bus) {
	t.Helper()

	db := setupTestDB(t)
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)

	service := NewService(
		NewWebhookRepository(db),
		NewEndpointRepository(db),
		NewForwardRepository(db),
		bus,
	)
	return service, db, bus
}

func recvEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func assertNoEvent(t *testing.T, ch <-chan events.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got %+v", ev)
	default:
	}
}

func TestCapturePublishesCreated(t *testing.T) {
	service, db, bus := newTestService(t)
	user := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", user)

	sub := bus.Subscribe(events.TopicWebhookCreated)
	defer sub.Close()

	webhook, err := service.Capture(context.Background(), endpoint.Token, CaptureInput{
		Method:   "POST",
		Path:     "/in/" + endpoint.Token,
		SourceIP: "203.0.113.9",
		Headers:  []KeyValue{{Key: "Content-Type", Value: "application/json"}},
		Body:     `{"hello":"world"}`,
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if webhook.ID == 0 {
		t.Fatal("expected webhook to be persisted")
	}

	ev := recvEvent(t, sub.Events()).(WebhookCreatedEvent)
	if ev.Webhook.ID != webhook.ID || ev.Endpoint.ID != endpoint.ID {
		t.Errorf("wrong event payload: %+v", ev)
	}
}

func TestCaptureUnknownToken(t *testing.T) {
	service, _, bus := newTestService(t)

	sub := bus.Subscribe(events.TopicWebhookCreated)
	defer sub.Close()

	_, err := service.Capture(context.Background(), "no-such-token", CaptureInput{Method: "POST"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	assertNoEvent(t, sub.Events())
}

func TestAddForwardPublishesUpdated(t *testing.T) {
	service, db, bus := newTestService(t)
	user := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", user)
	webhook := seedWebhook(t, db, endpoint.ID)

	sub := bus.Subscribe(events.TopicWebhookUpdated)
	defer sub.Close()

	forward, updated, err := service.AddForward(context.Background(), user, AddForwardInput{
		WebhookID:  webhook.ID,
		URL:        "https://example.com/receive",
		Method:     "POST",
		StatusCode: 204,
		Headers:    []KeyValue{{Key: "Content-Type", Value: "application/json; charset=utf-8"}},
		Body:       `{"n":1}`,
	})
	if err != nil {
		t.Fatalf("add forward: %v", err)
	}
	if !forward.Success {
		t.Error("204 must derive success=true")
	}
	if forward.ContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", forward.ContentType)
	}
	if updated.ID != webhook.ID {
		t.Errorf("expected reloaded webhook %d, got %d", webhook.ID, updated.ID)
	}

	ev := recvEvent(t, sub.Events()).(WebhookUpdatedEvent)
	if ev.Webhook.ID != webhook.ID || ev.Endpoint.ID != endpoint.ID {
		t.Errorf("wrong event payload: %+v", ev)
	}
}

func TestAddForwardAuthorization(t *testing.T) {
	service, db, bus := newTestService(t)
	owner := seedUser(t, db)
	outsider := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", owner)
	webhook := seedWebhook(t, db, endpoint.ID)

	sub := bus.Subscribe(events.TopicWebhookUpdated)
	defer sub.Close()

	in := AddForwardInput{WebhookID: webhook.ID, URL: "https://example.com", Method: "POST", StatusCode: 200}

	if _, _, err := service.AddForward(context.Background(), nil, in); !errors.Is(err, apperrors.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
	if _, _, err := service.AddForward(context.Background(), outsider, in); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	assertNoEvent(t, sub.Events())

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM forwards`).Scan(&count); err != nil {
		t.Fatalf("count forwards: %v", err)
	}
	if count != 0 {
		t.Errorf("denied mutation must not write, found %d forwards", count)
	}
}

func TestAddForwardNoPublishOnStorageFailure(t *testing.T) {
	service, db, bus := newTestService(t)
	user := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", user)
	webhook := seedWebhook(t, db, endpoint.ID)

	sub := bus.Subscribe(events.TopicWebhookUpdated)
	defer sub.Close()

	if _, err := db.Exec(`DROP TABLE forwards`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, _, err := service.AddForward(context.Background(), user, AddForwardInput{
		WebhookID: webhook.ID, URL: "https://example.com", Method: "POST", StatusCode: 200,
	})
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
	assertNoEvent(t, sub.Events())
}

func TestMarkRead(t *testing.T) {
	service, db, bus := newTestService(t)
	user := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", user)
	webhook := seedWebhook(t, db, endpoint.ID)

	sub := bus.Subscribe(events.TopicWebhookUpdated)
	defer sub.Close()

	updated, err := service.MarkRead(context.Background(), user, webhook.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !updated.Read {
		t.Error("expected read flag set on reloaded webhook")
	}

	ev := recvEvent(t, sub.Events()).(WebhookUpdatedEvent)
	if !ev.Webhook.Read {
		t.Error("event must carry the post-mutation state")
	}
}

func TestDeleteWebhooksPublishesDeleted(t *testing.T) {
	service, db, bus := newTestService(t)
	user := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", user)
	w1 := seedWebhook(t, db, endpoint.ID)
	w2 := seedWebhook(t, db, endpoint.ID)

	sub := bus.Subscribe(events.TopicWebhookDeleted)
	defer sub.Close()

	ids := []int64{w1.ID, w2.ID, 999}
	affected, err := service.DeleteWebhooks(context.Background(), user, endpoint.ID, ids)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 affected rows, got %d", affected)
	}

	ev := recvEvent(t, sub.Events()).(WebhooksDeletedEvent)
	if ev.AffectedRows != 2 || len(ev.WebhookIDs) != 3 || ev.Endpoint.ID != endpoint.ID {
		t.Errorf("wrong event payload: %+v", ev)
	}
}

func TestStreamPredicate(t *testing.T) {
	service, db, _ := newTestService(t)
	owner := seedUser(t, db)
	endpoint := seedEndpoint(t, db, "inbox", owner)
	other := seedEndpoint(t, db, "other", owner)
	webhook := seedWebhook(t, db, endpoint.ID)

	ctx := context.Background()
	pred := service.StreamPredicate(endpoint.ID, owner)

	ev := WebhookUpdatedEvent{Webhook: webhook, Endpoint: endpoint}

	allowed, err := pred(ctx, ev)
	if err != nil || !allowed {
		t.Errorf("member on own endpoint: allowed=%v err=%v", allowed, err)
	}

	// An event for a different endpoint is skipped, never an error.
	foreign := WebhookUpdatedEvent{Webhook: webhook, Endpoint: other}
	allowed, err = pred(ctx, foreign)
	if err != nil || allowed {
		t.Errorf("other endpoint: allowed=%v err=%v", allowed, err)
	}

	// Revocation turns into a silent skip on the next event.
	if err := NewEndpointRepository(db).RemoveUser(endpoint.ID, owner.ID); err != nil {
		t.Fatalf("remove user: %v", err)
	}
	allowed, err = pred(ctx, ev)
	if err != nil || allowed {
		t.Errorf("after revocation: allowed=%v err=%v", allowed, err)
	}

	// A storage failure is a hard error that must end the stream.
	if _, err := db.Exec(`DROP TABLE endpoint_users`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, err = pred(ctx, ev); !errors.Is(err, apperrors.ErrStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestConcurrentForwardsReachOnlyTheirSubscribers(t *testing.T) {
	service, db, bus := newTestService(t)
	alice := seedUser(t, db)
	bob := seedUser(t, db)
	endpointA := seedEndpoint(t, db, "alice", alice)
	endpointB := seedEndpoint(t, db, "bob", bob)
	webhookA := seedWebhook(t, db, endpointA.ID)
	webhookB := seedWebhook(t, db, endpointB.ID)

	ctx := context.Background()
	topics := []events.Topic{events.TopicWebhookUpdated}
	streamA := events.Subscribe(ctx, bus, topics, service.StreamPredicate(endpointA.ID, alice))
	defer streamA.Close()
	streamB := events.Subscribe(ctx, bus, topics, service.StreamPredicate(endpointB.ID, bob))
	defer streamB.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, _, err := service.AddForward(ctx, alice, AddForwardInput{
			WebhookID: webhookA.ID, URL: "https://example.com/a", Method: "POST", StatusCode: 200,
		}); err != nil {
			t.Errorf("alice forward: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, _, err := service.AddForward(ctx, bob, AddForwardInput{
			WebhookID: webhookB.ID, URL: "https://example.com/b", Method: "POST", StatusCode: 200,
		}); err != nil {
			t.Errorf("bob forward: %v", err)
		}
	}()
	wg.Wait()

	evA := recvEvent(t, streamA.Events()).(WebhookUpdatedEvent)
	if evA.Endpoint.ID != endpointA.ID {
		t.Errorf("alice's stream got endpoint %d", evA.Endpoint.ID)
	}
	evB := recvEvent(t, streamB.Events()).(WebhookUpdatedEvent)
	if evB.Endpoint.ID != endpointB.ID {
		t.Errorf("bob's stream got endpoint %d", evB.Endpoint.ID)
	}

	// Each stream saw exactly its own endpoint's event.
	assertNoEvent(t, streamA.Events())
	assertNoEvent(t, streamB.Events())
}

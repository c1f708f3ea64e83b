package hooks

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hookbin/internal/platform/models"
)

const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE endpoints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    token TEXT UNIQUE NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE endpoint_users (
    endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    PRIMARY KEY (endpoint_id, user_id)
);

CREATE TABLE webhooks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
    created_at INTEGER NOT NULL,
    read INTEGER NOT NULL DEFAULT 0,
    method TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '',
    source_ip TEXT NOT NULL DEFAULT '',
    headers TEXT NOT NULL DEFAULT '[]',
    query TEXT NOT NULL DEFAULT '[]',
    content_type TEXT,
    body TEXT
);

CREATE TABLE forwards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    webhook_id INTEGER NOT NULL REFERENCES webhooks(id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at INTEGER NOT NULL,
    url TEXT NOT NULL,
    method TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    headers TEXT NOT NULL DEFAULT '[]',
    query TEXT NOT NULL DEFAULT '[]',
    content_type TEXT,
    body TEXT,
    body_json TEXT
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// A pool would hand each connection its own empty in-memory database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

var testUserSeq int

func seedUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()

	testUserSeq++
	email := fmt.Sprintf("user%d@example.com", testUserSeq)

	res, err := db.Exec(`
		INSERT INTO users (email, password_hash, created_at)
		VALUES (?, ?, ?)
	`, email, "x", time.Now().Unix())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, _ := res.LastInsertId()
	return &models.User{ID: id, Email: email}
}

func seedEndpoint(t *testing.T, db *sql.DB, name string, owner *models.User) *Endpoint {
	t.Helper()

	endpoint := &Endpoint{Name: name}
	if err := NewEndpointRepository(db).Create(endpoint, owner.ID); err != nil {
		t.Fatalf("seed endpoint: %v", err)
	}
	return endpoint
}

func seedWebhook(t *testing.T, db *sql.DB, endpointID int64) *Webhook {
	t.Helper()

	webhook := &Webhook{
		EndpointID: endpointID,
		Method:     "POST",
		Path:       "/",
		Headers:    []KeyValue{{Key: "Content-Type", Value: "application/json"}},
		Query:      []KeyValue{},
		Body:       `{"ping":true}`,
	}
	if err := NewWebhookRepository(db).Insert(webhook); err != nil {
		t.Fatalf("seed webhook: %v", err)
	}
	return webhook
}

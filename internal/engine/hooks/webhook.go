package hooks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "hookbin/internal/pkg/errors"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, endpoint_id, created_at, read, method, path, source_ip, headers, query, content_type, body`

// Insert stores a freshly captured request.
func (r *WebhookRepository) Insert(webhook *Webhook) error {
	webhook.CreatedAt = time.Now().Unix()

	headersJSON, _ := json.Marshal(webhook.Headers)
	queryJSON, _ := json.Marshal(webhook.Query)

	res, err := r.db.Exec(`
		INSERT INTO webhooks (endpoint_id, created_at, read, method, path, source_ip, headers, query, content_type, body)
		VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?)
	`,
		webhook.EndpointID,
		webhook.CreatedAt,
		webhook.Method,
		webhook.Path,
		webhook.SourceIP,
		string(headersJSON),
		string(queryJSON),
		nullString(webhook.ContentType),
		nullString(webhook.Body),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "insert webhook: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "webhook id: %v", err)
	}
	webhook.ID = id
	return nil
}

func (r *WebhookRepository) FindByID(id int64) (*Webhook, error) {
	row := r.db.QueryRow(`SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	return scanWebhook(row)
}

// FindPage returns the newest webhooks of an endpoint, id-descending. An
// `after` id of 0 starts at the newest; otherwise only rows older than the
// cursor are returned.
func (r *WebhookRepository) FindPage(endpointID, after int64, limit int) ([]*Webhook, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE endpoint_id = ?`
	args := []interface{}{endpointID}
	if after > 0 {
		query += ` AND id < ?`
		args = append(args, after)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "page webhooks: %v", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// UpdateRead flips the read flag. The update is scoped to endpoints the user
// is authorized for, so a forged webhook id cannot touch foreign rows.
func (r *WebhookRepository) UpdateRead(webhookID, userID int64, read bool) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE webhooks SET read = ?
		WHERE id = ?
		  AND endpoint_id IN (SELECT endpoint_id FROM endpoint_users WHERE user_id = ?)
	`, read, webhookID, userID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "update read: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "update read rows: %v", err)
	}
	return affected, nil
}

// DeleteWebhooks bulk-deletes the given ids, constrained to one endpoint and
// to endpoints the user is authorized for. Ids outside that scope are
// ignored, not errors.
func (r *WebhookRepository) DeleteWebhooks(userID, endpointID int64, webhookIDs []int64) (int64, error) {
	if len(webhookIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(webhookIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(webhookIDs)+2)
	args = append(args, endpointID, userID)
	for _, id := range webhookIDs {
		args = append(args, id)
	}

	res, err := r.db.Exec(fmt.Sprintf(`
		DELETE FROM webhooks
		WHERE endpoint_id = ?
		  AND endpoint_id IN (SELECT endpoint_id FROM endpoint_users WHERE user_id = ?)
		  AND id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "delete webhooks: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "delete webhooks rows: %v", err)
	}
	return affected, nil
}

// PurgeOlderThan removes webhooks captured before the cutoff. Forwards go
// with them by cascade.
func (r *WebhookRepository) PurgeOlderThan(cutoff int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM webhooks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "purge webhooks: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "purge webhooks rows: %v", err)
	}
	return affected, nil
}

func scanWebhook(s interface {
	Scan(dest ...interface{}) error
}) (*Webhook, error) {
	var w Webhook
	var headersRaw, queryRaw []byte
	var contentType, body sql.NullString

	err := s.Scan(
		&w.ID,
		&w.EndpointID,
		&w.CreatedAt,
		&w.Read,
		&w.Method,
		&w.Path,
		&w.SourceIP,
		&headersRaw,
		&queryRaw,
		&contentType,
		&body,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "webhook")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "scan webhook: %v", err)
	}

	if len(headersRaw) > 0 {
		json.Unmarshal(headersRaw, &w.Headers)
	}
	if len(queryRaw) > 0 {
		json.Unmarshal(queryRaw, &w.Query)
	}
	if contentType.Valid {
		w.ContentType = contentType.String
	}
	if body.Valid {
		w.Body = body.String
	}
	return &w, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

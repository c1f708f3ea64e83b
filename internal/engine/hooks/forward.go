package hooks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "hookbin/internal/pkg/errors"
)

type ForwardRepository struct {
	db *sql.DB
}

func NewForwardRepository(db *sql.DB) *ForwardRepository {
	return &ForwardRepository{db: db}
}

const forwardColumns = `id, webhook_id, user_id, created_at, url, method, status_code, headers, query, content_type, body`

// Insert records one relay attempt. The raw body is always stored as given;
// body_json is a best-effort secondary copy populated only when the content
// type is application/json and the body is syntactically valid JSON. The
// validity check never parses into a value, so JSON arrays and scalars are as
// acceptable as objects.
func (r *ForwardRepository) Insert(forward *Forward) error {
	forward.CreatedAt = time.Now().Unix()

	headersJSON, _ := json.Marshal(forward.Headers)
	queryJSON, _ := json.Marshal(forward.Query)

	var bodyJSON sql.NullString
	if forward.ContentType == "application/json" && json.Valid([]byte(forward.Body)) {
		bodyJSON = sql.NullString{String: forward.Body, Valid: true}
	}

	res, err := r.db.Exec(`
		INSERT INTO forwards (webhook_id, user_id, created_at, url, method, status_code, headers, query, content_type, body, body_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		forward.WebhookID,
		forward.UserID,
		forward.CreatedAt,
		forward.URL,
		forward.Method,
		forward.StatusCode,
		string(headersJSON),
		string(queryJSON),
		nullString(forward.ContentType),
		nullString(forward.Body),
		bodyJSON,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "insert forward: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "forward id: %v", err)
	}
	forward.ID = id
	forward.Success = forwardSuccess(forward.StatusCode)
	return nil
}

// FindByKeys fetches the forwards of many webhooks in one round trip and
// partitions the rows back into one id-descending list per input key, in key
// order. This is the batching contract the read-side loader consumes.
//
// Keys arrive as strings from the API boundary. Every key must parse as an
// integer before any SQL is assembled: the WHERE clause below concatenates
// the ids into a dynamic OR chain, which is the one sanctioned exception to
// parameterized queries and is only safe behind this check.
func (r *ForwardRepository) FindByKeys(webhookIDs []string) ([][]*Forward, error) {
	if len(webhookIDs) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(webhookIDs))
	for i, raw := range webhookIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidOperation, "webhook key %q is not an integer", raw)
		}
		ids[i] = id
	}

	where := "1 = 0"
	for _, id := range ids {
		where += fmt.Sprintf(" OR webhook_id = %d", id)
	}

	rows, err := r.db.Query(`SELECT ` + forwardColumns + ` FROM forwards WHERE ` + where + ` ORDER BY id DESC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "find forwards: %v", err)
	}
	defer rows.Close()

	byWebhook := make(map[int64][]*Forward)
	for rows.Next() {
		f, err := scanForward(rows)
		if err != nil {
			return nil, err
		}
		byWebhook[f.WebhookID] = append(byWebhook[f.WebhookID], f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "find forwards: %v", err)
	}

	result := make([][]*Forward, len(ids))
	for i, id := range ids {
		if forwards := byWebhook[id]; forwards != nil {
			result[i] = forwards
		} else {
			result[i] = []*Forward{}
		}
	}
	return result, nil
}

// FindByWebhookID is the single-key convenience over the batched contract.
func (r *ForwardRepository) FindByWebhookID(webhookID int64) ([]*Forward, error) {
	lists, err := r.FindByKeys([]string{strconv.FormatInt(webhookID, 10)})
	if err != nil {
		return nil, err
	}
	return lists[0], nil
}

func scanForward(s interface {
	Scan(dest ...interface{}) error
}) (*Forward, error) {
	var f Forward
	var headersRaw, queryRaw []byte
	var contentType, body sql.NullString

	err := s.Scan(
		&f.ID,
		&f.WebhookID,
		&f.UserID,
		&f.CreatedAt,
		&f.URL,
		&f.Method,
		&f.StatusCode,
		&headersRaw,
		&queryRaw,
		&contentType,
		&body,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "forward")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "scan forward: %v", err)
	}

	// Derived on every read, never trusted from storage.
	f.Success = forwardSuccess(f.StatusCode)

	if len(headersRaw) > 0 {
		json.Unmarshal(headersRaw, &f.Headers)
	}
	if len(queryRaw) > 0 {
		json.Unmarshal(queryRaw, &f.Query)
	}
	if contentType.Valid {
		f.ContentType = contentType.String
	}
	if body.Valid {
		f.Body = body.String
	}
	return &f, nil
}

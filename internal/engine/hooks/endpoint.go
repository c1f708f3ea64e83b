package hooks

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "hookbin/internal/pkg/errors"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

// Create inserts the endpoint and grants the creator access in the same
// transaction.
func (r *EndpointRepository) Create(endpoint *Endpoint, ownerUserID int64) error {
	endpoint.Token = uuid.New().String()
	endpoint.CreatedAt = time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "begin create endpoint: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO endpoints (name, token, created_at)
		VALUES (?, ?, ?)
	`, endpoint.Name, endpoint.Token, endpoint.CreatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "insert endpoint: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "endpoint id: %v", err)
	}
	endpoint.ID = id

	if _, err := tx.Exec(`
		INSERT INTO endpoint_users (endpoint_id, user_id)
		VALUES (?, ?)
	`, endpoint.ID, ownerUserID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "grant endpoint access: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "commit create endpoint: %v", err)
	}
	return nil
}

func (r *EndpointRepository) GetByID(id int64) (*Endpoint, error) {
	row := r.db.QueryRow(`
		SELECT id, name, token, created_at
		FROM endpoints WHERE id = ?
	`, id)
	return scanEndpoint(row)
}

// GetByToken resolves the public capture token used by the ingestion front
// door.
func (r *EndpointRepository) GetByToken(token string) (*Endpoint, error) {
	row := r.db.QueryRow(`
		SELECT id, name, token, created_at
		FROM endpoints WHERE token = ?
	`, token)
	return scanEndpoint(row)
}

func (r *EndpointRepository) FindByWebhookID(webhookID int64) (*Endpoint, error) {
	row := r.db.QueryRow(`
		SELECT e.id, e.name, e.token, e.created_at
		FROM endpoints e
		JOIN webhooks w ON w.endpoint_id = e.id
		WHERE w.id = ?
	`, webhookID)
	return scanEndpoint(row)
}

// IsEndpointUser answers whether userID is in the endpoint's authorized set.
// Pure read, re-run on every authorization check; never cached.
func (r *EndpointRepository) IsEndpointUser(endpointID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM endpoint_users WHERE endpoint_id = ? AND user_id = ?)
	`, endpointID, userID).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStorage, "check endpoint user: %v", err)
	}
	return exists, nil
}

func (r *EndpointRepository) AddUser(endpointID, userID int64) error {
	if _, err := r.db.Exec(`
		INSERT OR IGNORE INTO endpoint_users (endpoint_id, user_id)
		VALUES (?, ?)
	`, endpointID, userID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "add endpoint user: %v", err)
	}
	return nil
}

// RemoveUser revokes a user's access. Open streams observe the revocation on
// their next per-event authorization re-check.
func (r *EndpointRepository) RemoveUser(endpointID, userID int64) error {
	if _, err := r.db.Exec(`
		DELETE FROM endpoint_users WHERE endpoint_id = ? AND user_id = ?
	`, endpointID, userID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "remove endpoint user: %v", err)
	}
	return nil
}

func (r *EndpointRepository) ListForUser(userID int64) ([]*Endpoint, error) {
	rows, err := r.db.Query(`
		SELECT e.id, e.name, e.token, e.created_at
		FROM endpoints e
		JOIN endpoint_users eu ON eu.endpoint_id = e.id
		WHERE eu.user_id = ?
		ORDER BY e.id DESC
	`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "list endpoints: %v", err)
	}
	defer rows.Close()

	var endpoints []*Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func scanEndpoint(s interface {
	Scan(dest ...interface{}) error
}) (*Endpoint, error) {
	var e Endpoint
	err := s.Scan(&e.ID, &e.Name, &e.Token, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "endpoint")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "scan endpoint: %v", err)
	}
	return &e, nil
}

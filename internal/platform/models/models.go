package models

// User is the authenticated principal. Access to endpoints is granted through
// the endpoint_users relation, not through ownership fields here.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

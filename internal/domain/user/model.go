package user

import "time"

// Role scopes what an authenticated account may do.
type Role string

const (
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// User is an authenticated account. Reviewers at other plants are not users;
// they act through capability links.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Plant        string    `json:"plant"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the identity attached to a request after session verification.
type Principal struct {
	UserID string
	Email  string
	Plant  string
	Role   Role
}

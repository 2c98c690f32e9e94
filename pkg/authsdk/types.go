package authsdk

import "time"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`

	// Created is the issue time of the pair.
	Created time.Time `json:"created"`

	// Expiration is when the access token expires. The refresh token lives
	// three times as long.
	Expiration time.Time `json:"expiration"`

	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username    string   `json:"username"`
	FullName    string   `json:"fullName"`
	Password    string   `json:"password"`
	Authorities []string `json:"authorities,omitempty"`
}

// UserResponse describes a principal. The password hash is never exposed.
type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullName"`
	Authorities []string  `json:"authorities"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per dependency results of /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}

// FieldMessage is one failed field of a ValidationError.
type FieldMessage struct {
	FieldName string `json:"fieldName"`
	Message   string `json:"message"`
}

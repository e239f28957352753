package model

import "time"

// User represents an account row in the `users` table. AccountStatus mirrors
// the platform-wide states ("active", "suspended"); only active admins may
// open the shop editor.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Username      – unique display name.
//  PasswordHash  – bcrypt hashed password.
//  AccountStatus – "active" or "suspended".
//  IsAdmin       – whether the user may use the admin surfaces.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Username      string    // users.username
	PasswordHash  string    // users.password_hash
	AccountStatus string    // users.account_status
	IsAdmin       bool      // users.is_admin
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token value is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

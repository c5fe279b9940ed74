// Package tokenstore persists the client's token pair and current user id
// in the device's local key-value storage. It holds no logic beyond durable
// reads and writes; the request pipeline is its only caller.
package tokenstore

import "errors"

// Stable keys under which the credentials are stored. These are part of the
// on-device layout and must not change between app versions.
const (
	KeyAccessToken  = "auth.access_token"
	KeyRefreshToken = "auth.refresh_token"
	KeyUserID       = "auth.user_id"
)

// ErrNotFound is returned by Load when no credentials have been stored.
var ErrNotFound = errors.New("no stored credentials")

// Credentials is the persisted slice of a session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Store is durable key-value storage for the current credentials.
//
// Save replaces the whole set in one write and Clear removes the whole set
// in one write: the token pair is atomic by construction, a reader can never
// observe old-access/new-refresh or a half-cleared pair.
type Store interface {
	Load() (Credentials, error)
	Save(creds Credentials) error
	Clear() error
}

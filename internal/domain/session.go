package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session represents the authenticated state of the client: the current
// access/refresh token pair and the user they belong to. The session is
// owned by the request pipeline for the lifetime of the process; the token
// store is only a durability mechanism behind it.
//
// Invariant: AccessToken and RefreshToken are either both set or both empty.
// There is no valid state with only one of them present.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       uuid.UUID
	// ExpiresAt is the access token's expiry, extracted best-effort from its
	// "exp" claim. Zero when the claim is absent or unreadable.
	ExpiresAt time.Time
}

// Authenticated reports whether the session holds a complete token pair.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Consistent reports whether the both-or-neither token invariant holds.
func (s Session) Consistent() bool {
	return (s.AccessToken == "") == (s.RefreshToken == "")
}

// Expired reports whether the access token is known to be past its expiry.
// A session with no expiry information is never reported as expired; the
// backend's 401 is the authority in that case.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

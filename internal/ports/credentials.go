package ports

import (
	"context"
	"time"
)

// Credentials is an OAuth token set for the brokerage API.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Expired reports whether the access token is past (or within a minute of)
// its expiry.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.Expiry.After(now.Add(time.Minute))
}

// CredentialStore persists broker credentials at rest. It sits strictly
// upstream of the BrokerGateway; the decision engine never touches it.
type CredentialStore interface {
	// Load retrieves the stored credentials.
	Load(ctx context.Context) (*Credentials, error)
	// Save persists credentials, replacing any previous set.
	Save(ctx context.Context, creds *Credentials) error
}

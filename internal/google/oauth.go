package google

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarScope grants read/write access to calendar events.
// If this scope changes, previously issued refresh tokens become unusable.
const CalendarScope = "https://www.googleapis.com/auth/calendar.events"

// Credentials holds the OAuth client identity plus an offline refresh token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate reports whether the credentials are complete enough to mint
// access tokens. Placeholder values left over from a template .env file are
// rejected the same as missing ones.
func (c Credentials) Validate() error {
	switch {
	case c.ClientID == "" || c.ClientID == "YOUR_CLIENT_ID":
		return fmt.Errorf("google client id is not configured")
	case c.ClientSecret == "":
		return fmt.Errorf("google client secret is not configured")
	case c.RefreshToken == "":
		return fmt.Errorf("google refresh token is not configured")
	}
	return nil
}

// OAuthConfig returns the oauth2 configuration used for token refresh.
func OAuthConfig(creds Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{CalendarScope},
	}
}

// TokenSource returns an auto-refreshing token source backed by the
// refresh token. No initial access token is needed; the first use triggers
// a refresh round trip.
func TokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	conf := OAuthConfig(creds)
	ts := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: creds.RefreshToken,
	})
	return oauth2.ReuseTokenSource(nil, ts), nil
}

// HTTPClient returns an HTTP client that authenticates requests with the
// given token source. HTTP/2 is disabled; the Google API endpoints
// occasionally reset long-lived HTTP/2 streams.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client
}

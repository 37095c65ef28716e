package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// AuthClient wraps Firebase token verification for callers outside the
// Echo middleware (the WebSocket handshake passes the token as a query
// parameter because browsers cannot set headers on WebSocket upgrades).
type AuthClient struct {
	client *auth.Client
}

func NewAuthClient(client *auth.Client) *AuthClient {
	return &AuthClient{
		client: client,
	}
}

// VerifyToken returns the authenticated user id for a Firebase ID token.
func (c *AuthClient) VerifyToken(ctx context.Context, idToken string) (string, error) {
	token, err := c.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return token.UID, nil
}

// TestConnection checks that the Auth backend is reachable. A lookup of
// a user that does not exist still proves connectivity.
func (c *AuthClient) TestConnection(ctx context.Context) error {
	_, err := c.client.GetUser(ctx, "healthcheck")
	if err != nil && !auth.IsUserNotFound(err) {
		return err
	}
	return nil
}

package crowdbuilding

import (
	"context"
	"net/http"

	"cbgateway/pkg/models"
)

// ExchangeToken trades a Memberstack session token for a CrowdBuilding bearer
// token. The bearer is the credential for every other call on this client.
func (c *Client) ExchangeToken(ctx context.Context, memberstackToken string) (string, error) {
	if memberstackToken == "" {
		return "", ErrAuthRequired
	}
	var out struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/sanctum/token", "", map[string]string{
		"memberstack_token": memberstackToken,
		"device_name":       c.DeviceName,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

// Me fetches the profile of the member behind the bearer token.
func (c *Client) Me(ctx context.Context, token string) (*models.Member, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var out struct {
		Data models.Member `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

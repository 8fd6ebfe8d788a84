package crowdbuilding

import (
	"context"
	"net/http"

	"cbgateway/pkg/models"
)

// CommunityKind is the path segment of the three followable entity types.
type CommunityKind string

const (
	Groups       CommunityKind = "groups"
	Plots        CommunityKind = "plots"
	HousingForms CommunityKind = "housing-forms"
)

func ParseCommunityKind(s string) (CommunityKind, bool) {
	switch CommunityKind(s) {
	case Groups, Plots, HousingForms:
		return CommunityKind(s), true
	}
	return "", false
}

// Community fetches a group, plot or housing-form detail record. The token is
// optional; without it the caller-specific permission flags are absent.
func (c *Client) Community(ctx context.Context, token string, kind CommunityKind, id string) (*models.Community, error) {
	var out struct {
		Data models.Community `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/"+string(kind)+"/"+id, token, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Follow subscribes the member to the community. The housing-forms endpoint
// wants a device_name body where groups and plots take an empty object.
func (c *Client) Follow(ctx context.Context, token string, kind CommunityKind, id string) error {
	return c.follow(ctx, token, kind, id, "follow")
}

// Unfollow removes the member's subscription.
func (c *Client) Unfollow(ctx context.Context, token string, kind CommunityKind, id string) error {
	return c.follow(ctx, token, kind, id, "unfollow")
}

func (c *Client) follow(ctx context.Context, token string, kind CommunityKind, id, action string) error {
	if token == "" {
		return ErrAuthRequired
	}
	body := map[string]string{}
	if kind == HousingForms {
		body["device_name"] = c.DeviceName
	}
	return c.doJSON(ctx, http.MethodPost, "/"+string(kind)+"/"+id+"/"+action, token, body, nil)
}

package crowdbuilding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/carlmjohnson/versioninfo"
)

const DefaultHost = "https://api.crowdbuilding.com/api/v1"

// Client is a typed client for the CrowdBuilding REST API. The zero value is
// not usable; construct with New.
type Client struct {
	// Host is the API base URL, without trailing slash.
	Host string
	// DeviceName is sent on token exchange and the housing-forms follow call.
	DeviceName string
	// Client is the HTTP client to use. If not set, a RobustHTTPClient is
	// used per call.
	Client    *http.Client
	UserAgent string
}

func New(host, deviceName string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		Host:       host,
		DeviceName: deviceName,
		Client:     RobustHTTPClient(),
	}
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return RobustHTTPClient()
	}
	return c.Client
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	uri := c.Host + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "cb-gateway/"+versioninfo.Short())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, bodyobj, out interface{}) error {
	var body io.Reader
	var contentType string
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, token, nil, body, contentType, out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		apiErr.Message = payload.Message
		apiErr.Fields = payload.Errors
	}
	return apiErr
}

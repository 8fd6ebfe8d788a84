package crowdbuilding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"cbgateway/pkg/models"
)

// Upload is one image attachment for a new post.
type Upload struct {
	Name   string
	Reader io.Reader
}

// GroupPosts fetches one page of a group's bulletin board. An empty cursor
// requests the first page.
func (c *Client) GroupPosts(ctx context.Context, token, slug, cursor string) (*models.FeedPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var out models.FeedPage
	err := c.do(ctx, http.MethodGet, "/groups/"+slug+"/posts", token, query, nil, "", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost submits a new post as multipart form data with optional images.
func (c *Client) CreatePost(ctx context.Context, token, slug, body string, images []Upload) (*models.Post, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}

	buf := &bytes.Buffer{}
	form := multipart.NewWriter(buf)
	if err := form.WriteField("body", body); err != nil {
		return nil, err
	}
	for _, img := range images {
		part, err := form.CreateFormFile("images[]", img.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, img.Reader); err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", img.Name, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	var out struct {
		Data models.Post `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/groups/"+slug+"/posts", token, nil, buf, form.FormDataContentType(), &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeletePost removes a post. The server enforces the can_delete permission.
func (c *Client) DeletePost(ctx context.Context, token, slug, id string) error {
	if token == "" {
		return ErrAuthRequired
	}
	return c.doJSON(ctx, http.MethodDelete, "/groups/"+slug+"/posts/"+id, token, nil, nil)
}

// Post fetches the canonical state of a single post. The reconciler uses this
// when a toggle response carries no usable signal.
func (c *Client) Post(ctx context.Context, token, id string) (*models.Post, error) {
	var out struct {
		Data models.Post `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/posts/"+id, token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Comments lists all comments of a post.
func (c *Client) Comments(ctx context.Context, token, postID string) ([]models.Comment, error) {
	var out struct {
		Data []models.Comment `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/posts/"+postID+"/comments", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, token, postID, body string) (*models.Comment, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var out struct {
		Data models.Comment `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/posts/"+postID+"/comments", token, map[string]string{"body": body}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ToggleLike flips the member's like on a post or comment. Exactly one POST
// is issued; interpreting the response is the reconciler's job.
func (c *Client) ToggleLike(ctx context.Context, token string, kind models.EntityKind, id string) (*models.ToggleResult, error) {
	if token == "" {
		return nil, ErrAuthRequired
	}
	var out models.ToggleResult
	err := c.doJSON(ctx, http.MethodPost, "/"+string(kind)+"/"+id+"/like", token, map[string]string{}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

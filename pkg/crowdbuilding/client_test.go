package crowdbuilding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbgateway/pkg/models"
)

// testClient wires the client to a fake upstream without retry logic, so
// error cases return immediately.
func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{Host: srv.URL, DeviceName: "test-device", Client: srv.Client()}
}

func TestExchangeToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sanctum/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ms-token", body["memberstack_token"])
		assert.Equal(t, "test-device", body["device_name"])

		json.NewEncoder(w).Encode(map[string]string{"token": "cb-bearer"})
	})

	token, err := c.ExchangeToken(context.Background(), "ms-token")
	require.NoError(t, err)
	assert.Equal(t, "cb-bearer", token)
}

func TestExchangeTokenEmptyMakesNoCall(t *testing.T) {
	called := false
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.ExchangeToken(context.Background(), "")
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.False(t, called)
}

func TestGroupPostsCursorAndBearer(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/groups/de-warren/posts", r.URL.Path)
		assert.Equal(t, "c2", r.URL.Query().Get("cursor"))
		assert.Equal(t, "Bearer cb-bearer", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"id": "p1", "body": "hallo"}},
			"meta": map[string]interface{}{"next_cursor": "c3"},
		})
	})

	page, err := c.GroupPosts(context.Background(), "cb-bearer", "de-warren", "c2")
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "p1", page.Data[0].ID)
	require.NotNil(t, page.Meta.NextCursor)
	assert.Equal(t, "c3", *page.Meta.NextCursor)
}

func TestGroupPostsFirstPageOmitsCursor(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["cursor"]
		assert.False(t, present, "first page must not synthesize a cursor")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}, "meta": map[string]interface{}{"next_cursor": nil}})
	})

	page, err := c.GroupPosts(context.Background(), "", "de-warren", "")
	require.NoError(t, err)
	assert.Nil(t, page.Meta.NextCursor)
}

func TestToggleLikePaths(t *testing.T) {
	var gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{"liked": true, "likes_count": 5})
	})

	res, err := c.ToggleLike(context.Background(), "tok", models.KindPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, "/posts/p1/like", gotPath)
	require.NotNil(t, res.Liked)
	assert.True(t, *res.Liked)
	require.NotNil(t, res.LikesCount)
	assert.Equal(t, 5, *res.LikesCount)

	_, err = c.ToggleLike(context.Background(), "tok", models.KindComment, "c7")
	require.NoError(t, err)
	assert.Equal(t, "/comments/c7/like", gotPath)

	_, err = c.ToggleLike(context.Background(), "", models.KindPost, "p1")
	require.ErrorIs(t, err, ErrAuthRequired)
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, ErrAuthRequired},
		{403, ErrPermissionDenied},
		{404, ErrNotFound},
		{422, ErrValidation},
		{500, ErrServer},
		{503, ErrServer},
	}
	for _, tc := range cases {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"message": "nee"})
		})
		_, err := c.Post(context.Background(), "tok", "p1")
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tc.status, apiErr.StatusCode)
		assert.Equal(t, "nee", apiErr.Message)
	}
}

func TestValidationFieldErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "The body field is required.",
			"errors":  map[string][]string{"body": {"The body field is required."}},
		})
	})

	_, err := c.CreateComment(context.Background(), "tok", "p1", "")
	require.ErrorIs(t, err, ErrValidation)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Fields, "body")
}

func TestCreatePostMultipart(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "nieuw bericht", r.FormValue("body"))

		files := r.MultipartForm.File["images[]"]
		require.Len(t, files, 1)
		assert.Equal(t, "foto.jpg", files[0].Filename)

		w.WriteHeader(201)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": "p9", "body": "nieuw bericht"},
		})
	})

	post, err := c.CreatePost(context.Background(), "tok", "de-warren", "nieuw bericht",
		[]Upload{{Name: "foto.jpg", Reader: strings.NewReader("jpegdata")}})
	require.NoError(t, err)
	assert.Equal(t, "p9", post.ID)
}

func TestFollowBodies(t *testing.T) {
	var got map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, c.Follow(context.Background(), "tok", Groups, "g1"))
	assert.Empty(t, got)

	require.NoError(t, c.Follow(context.Background(), "tok", HousingForms, "h1"))
	assert.Equal(t, "test-device", got["device_name"])

	require.ErrorIs(t, c.Follow(context.Background(), "", Groups, "g1"), ErrAuthRequired)
}

func TestParseCommunityKind(t *testing.T) {
	for _, valid := range []string{"groups", "plots", "housing-forms"} {
		_, ok := ParseCommunityKind(valid)
		assert.True(t, ok, valid)
	}
	_, ok := ParseCommunityKind("posts")
	assert.False(t, ok)
}

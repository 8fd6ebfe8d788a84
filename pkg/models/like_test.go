package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikeMemberIDShapes(t *testing.T) {
	cases := []struct {
		name string
		like Like
		want string
	}{
		{"direct user_id", Like{UserID: "m1"}, "m1"},
		{"nested created_by", Like{CreatedBy: &Member{ID: "m2"}}, "m2"},
		{"nested user", Like{User: &Member{ID: "m3"}}, "m3"},
		{"user_id wins over created_by", Like{UserID: "m1", CreatedBy: &Member{ID: "m2"}}, "m1"},
		{"created_by wins over user", Like{CreatedBy: &Member{ID: "m2"}, User: &Member{ID: "m3"}}, "m2"},
		{"empty record", Like{}, ""},
		{"empty created_by falls through", Like{CreatedBy: &Member{}, User: &Member{ID: "m3"}}, "m3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.like.MemberID())
		})
	}
}

func TestLikedBy(t *testing.T) {
	likes := []Like{
		{UserID: "m1"},
		{CreatedBy: &Member{ID: "m2"}},
		{User: &Member{ID: "m3"}},
	}

	assert.True(t, LikedBy(likes, "m1"))
	assert.True(t, LikedBy(likes, "m2"))
	assert.True(t, LikedBy(likes, "m3"))
	assert.False(t, LikedBy(likes, "m4"))

	// anonymous caller never matches, even against malformed like records
	assert.False(t, LikedBy(likes, ""))
	assert.False(t, LikedBy([]Like{{}}, ""))

	assert.False(t, LikedBy(nil, "m1"))
	assert.False(t, LikedBy([]Like{}, "m1"))
}

func TestPostIsLikedBy(t *testing.T) {
	p := &Post{Likes: []Like{{User: &Member{ID: "m1"}}}}
	assert.True(t, p.IsLikedBy("m1"))
	assert.False(t, p.IsLikedBy("m2"))

	// an explicit flag from the server beats the like list
	liked := false
	p.Liked = &liked
	assert.False(t, p.IsLikedBy("m1"))

	empty := &Post{}
	assert.False(t, empty.IsLikedBy("m1"))
}

func TestEntityRef(t *testing.T) {
	post := EntityRef{Kind: KindPost, ID: "12"}
	assert.True(t, post.Valid())
	assert.Equal(t, "posts/12", post.Key())

	comment := EntityRef{Kind: KindComment, ID: "7", PostID: "12"}
	assert.True(t, comment.Valid())
	assert.Equal(t, "comments/7", comment.Key())

	// comments need their parent for the canonical re-fetch
	assert.False(t, EntityRef{Kind: KindComment, ID: "7"}.Valid())
	assert.False(t, EntityRef{Kind: KindPost}.Valid())
	assert.False(t, EntityRef{Kind: "likes", ID: "1"}.Valid())

	parsed, ok := ParseEntityKey("posts/12")
	assert.True(t, ok)
	assert.Equal(t, post, parsed)

	_, ok = ParseEntityKey("likes/12")
	assert.False(t, ok)
	_, ok = ParseEntityKey("posts")
	assert.False(t, ok)
}

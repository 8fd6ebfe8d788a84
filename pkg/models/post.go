package models

import "time"

type Image struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Post is one bulletin-board message. Likes may be absent even when
// likes_count is not; never assume the list is populated.
type Post struct {
	ID            string       `json:"id"`
	Body          string       `json:"body"`
	Author        *Member      `json:"user,omitempty"`
	Images        []Image      `json:"images,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	LikesCount    int          `json:"likes_count"`
	Likes         []Like       `json:"likes,omitempty"`
	CommentsCount int          `json:"comments_count"`
	Permissions   *Permissions `json:"permissions,omitempty"`
	Liked         *bool        `json:"liked,omitempty"`
}

func (p *Post) IsLikedBy(memberID string) bool {
	if p.Liked != nil {
		return *p.Liked
	}
	return LikedBy(p.Likes, memberID)
}

func (p *Post) CanDelete() bool {
	return p.Permissions != nil && p.Permissions.CanDelete
}

func (p *Post) Ref() EntityRef {
	return EntityRef{Kind: KindPost, ID: p.ID}
}

// Comment has the same shape as Post minus images, scoped to a parent post.
type Comment struct {
	ID          string       `json:"id"`
	PostID      string       `json:"post_id,omitempty"`
	Body        string       `json:"body"`
	Author      *Member      `json:"user,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	LikesCount  int          `json:"likes_count"`
	Likes       []Like       `json:"likes,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
	Liked       *bool        `json:"liked,omitempty"`
}

func (c *Comment) IsLikedBy(memberID string) bool {
	if c.Liked != nil {
		return *c.Liked
	}
	return LikedBy(c.Likes, memberID)
}

func (c *Comment) Ref(postID string) EntityRef {
	if postID == "" {
		postID = c.PostID
	}
	return EntityRef{Kind: KindComment, ID: c.ID, PostID: postID}
}

// PageMeta carries the opaque next-page cursor. A missing cursor means the
// feed is exhausted; cursors are never synthesized client-side.
type PageMeta struct {
	NextCursor *string `json:"next_cursor"`
}

// FeedPage is one page of a cursor-paginated post listing.
type FeedPage struct {
	Data []Post   `json:"data"`
	Meta PageMeta `json:"meta"`
}

// ToggleEntity is the (inconsistently populated) entity snapshot a like
// toggle response may carry.
type ToggleEntity struct {
	ID         string `json:"id"`
	Liked      *bool  `json:"liked,omitempty"`
	LikesCount *int   `json:"likes_count,omitempty"`
	Likes      []Like `json:"likes,omitempty"`
}

// ToggleResult is the like-toggle response. The free-text message is kept for
// logging only; resulting state must never be inferred from it.
type ToggleResult struct {
	Liked      *bool         `json:"liked,omitempty"`
	LikesCount *int          `json:"likes_count,omitempty"`
	Message    string        `json:"message,omitempty"`
	Data       *ToggleEntity `json:"data,omitempty"`
}

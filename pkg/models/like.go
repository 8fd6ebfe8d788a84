package models

import "strings"

// Like is the relation between a member and a post or comment. The API is not
// uniform about where the liking member lives: depending on the endpoint the
// record carries a bare user_id, a nested created_by object or a nested user
// object. MemberID checks all three, in that order.
type Like struct {
	ID        string  `json:"id,omitempty"`
	UserID    string  `json:"user_id,omitempty"`
	CreatedBy *Member `json:"created_by,omitempty"`
	User      *Member `json:"user,omitempty"`
}

// MemberID resolves the liking member's id, or "" when no shape matches.
func (l Like) MemberID() string {
	if l.UserID != "" {
		return l.UserID
	}
	if l.CreatedBy != nil && l.CreatedBy.ID != "" {
		return l.CreatedBy.ID
	}
	if l.User != nil {
		return l.User.ID
	}
	return ""
}

// LikedBy reports whether the given member appears in the like list. An empty
// member id (anonymous caller) never matches.
func LikedBy(likes []Like, memberID string) bool {
	if memberID == "" {
		return false
	}
	for _, l := range likes {
		if l.MemberID() == memberID {
			return true
		}
	}
	return false
}

// EntityKind distinguishes the two reaction-bearing record types. The values
// double as the API path segment for the like endpoints.
type EntityKind string

const (
	KindPost    EntityKind = "posts"
	KindComment EntityKind = "comments"
)

// EntityRef identifies one reaction-bearing entity. PostID is the parent post
// and is only set for comments.
type EntityRef struct {
	Kind   EntityKind `json:"kind"`
	ID     string     `json:"id"`
	PostID string     `json:"post_id,omitempty"`
}

func (r EntityRef) Valid() bool {
	if r.ID == "" {
		return false
	}
	switch r.Kind {
	case KindPost:
		return true
	case KindComment:
		return r.PostID != ""
	}
	return false
}

// Key is the stable tag views use to subscribe to an entity, e.g. "posts/12".
func (r EntityRef) Key() string {
	return string(r.Kind) + "/" + r.ID
}

// ParseEntityKey is the inverse of Key. The parent post id is not part of the
// key, so refs parsed from keys cannot drive a comment re-fetch on their own.
func ParseEntityKey(key string) (EntityRef, bool) {
	kind, id, ok := strings.Cut(key, "/")
	if !ok || id == "" {
		return EntityRef{}, false
	}
	switch EntityKind(kind) {
	case KindPost, KindComment:
		return EntityRef{Kind: EntityKind(kind), ID: id}, true
	}
	return EntityRef{}, false
}

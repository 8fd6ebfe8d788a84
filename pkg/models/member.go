package models

// Member is the user summary the API attaches to posts, comments, likes and
// follower lists.
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Permissions carries the caller-specific flags the API embeds per entity.
type Permissions struct {
	CanDelete   bool `json:"can_delete"`
	CanFollow   bool `json:"can_follow"`
	CanUnfollow bool `json:"can_unfollow"`
}

// Community is a group, plot or housing form detail record.
type Community struct {
	ID             string       `json:"id"`
	Slug           string       `json:"slug,omitempty"`
	Title          string       `json:"title,omitempty"`
	Subtitle       string       `json:"subtitle,omitempty"`
	Phase          string       `json:"phase,omitempty"`
	ImageURL       string       `json:"image_url,omitempty"`
	FollowersCount int          `json:"followers_count"`
	Followers      []Member     `json:"followers,omitempty"`
	Permissions    *Permissions `json:"permissions,omitempty"`
}

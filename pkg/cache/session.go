package cache

import "time"

// A session binds the exact Memberstack credential the browser presents to
// the member identity and upstream bearer established at exchange time. Keys
// are derived from the full raw token, never from its claims, so a token with
// copied claims and a bad signature can only resolve to its own (nonexistent)
// entry. The cache is invalidated only by an explicit clear (logout) or TTL
// expiry.

const (
	sessionKeyPrefix = "session:token:"
	avatarKeyPrefix  = "avatar:"
	avatarTTL        = 7 * 24 * time.Hour
)

// Session is the record cached per presented Memberstack token.
type Session struct {
	MemberID string `json:"member_id"`
	Bearer   string `json:"bearer"`
}

func (r *Redis) Session(key string) (Session, bool) {
	var s Session
	if key == "" || !r.Get(sessionKeyPrefix+key, &s) {
		return Session{}, false
	}
	return s, s.MemberID != "" && s.Bearer != ""
}

func (r *Redis) SetSession(key string, s Session, ttl time.Duration) {
	if key == "" || s.MemberID == "" || s.Bearer == "" {
		return
	}
	r.Set(sessionKeyPrefix+key, s, ttl)
}

func (r *Redis) ClearSession(key string) {
	if key != "" {
		r.Del(sessionKeyPrefix + key)
	}
}

// Avatar mirrors the record the site keeps under its userAvatar storage key.
// It is non-authoritative and overwritten on every successful profile fetch.
type Avatar struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	LastUpdated int64  `json:"lastUpdated"`
}

func (r *Redis) Avatar(memberID string) (Avatar, bool) {
	var a Avatar
	if memberID == "" || !r.Get(avatarKeyPrefix+memberID, &a) {
		return Avatar{}, false
	}
	return a, a.URL != ""
}

func (r *Redis) SetAvatar(memberID string, a Avatar) {
	if memberID == "" {
		return
	}
	if a.LastUpdated == 0 {
		a.LastUpdated = time.Now().UnixMilli()
	}
	r.Set(avatarKeyPrefix+memberID, a, avatarTTL)
}

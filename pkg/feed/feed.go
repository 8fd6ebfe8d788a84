package feed

import (
	"context"
	"sync"

	"cbgateway/pkg/models"
)

// Fetcher loads one feed page. An empty cursor requests the first page.
type Fetcher func(ctx context.Context, cursor string) (*models.FeedPage, error)

// Session owns the feed state for a single rendered view: the ordered post
// list, the opaque next-page cursor and the in-flight flag. It is bound to
// the view's context and lives exactly as long as the connection that created
// it; a response that lands after teardown is discarded.
type Session struct {
	ctx   context.Context
	fetch Fetcher

	mu        sync.Mutex
	posts     []models.Post
	index     map[string]int
	cursor    string
	loaded    bool
	exhausted bool
	inFlight  bool
}

func NewSession(ctx context.Context, fetch Fetcher) *Session {
	return &Session{ctx: ctx, fetch: fetch, index: make(map[string]int)}
}

// LoadMore fetches the next page and returns the newly added posts. It is a
// no-op returning (nil, nil) while a fetch is in flight or once the server
// stopped issuing cursors. After a failure the cursor stays put, so calling
// again retries exactly the failed page: the first page after a first-page
// failure, only page N after a page-N failure.
func (s *Session) LoadMore() ([]models.Post, error) {
	s.mu.Lock()
	if s.inFlight || (s.loaded && s.exhausted) {
		s.mu.Unlock()
		return nil, nil
	}
	cursor := s.cursor
	s.inFlight = true
	s.mu.Unlock()

	page, err := s.fetch(s.ctx, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if s.ctx.Err() != nil {
		// view is gone, nothing left to update
		return nil, s.ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	if cursor == "" {
		s.posts = s.posts[:0]
		s.index = make(map[string]int)
	}
	added := make([]models.Post, 0, len(page.Data))
	for _, p := range page.Data {
		if _, dup := s.index[p.ID]; dup {
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, p)
		added = append(added, p)
	}

	s.loaded = true
	if page.Meta.NextCursor != nil && *page.Meta.NextCursor != "" {
		s.cursor = *page.Meta.NextCursor
		s.exhausted = false
	} else {
		s.cursor = ""
		s.exhausted = true
	}
	return added, nil
}

// HasMore reports whether a "load more" affordance should be shown.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loaded || !s.exhausted
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// Posts returns a copy of the rendered feed, oldest page first, local
// creations at the head.
func (s *Session) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

func (s *Session) Get(id string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		return s.posts[i], true
	}
	return models.Post{}, false
}

// Prepend inserts a freshly created post at the head of the feed, the
// newest-first position the view gives locally created posts.
func (s *Session) Prepend(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[p.ID]; dup {
		return
	}
	s.posts = append([]models.Post{p}, s.posts...)
	for id, i := range s.index {
		s.index[id] = i + 1
	}
	s.index[p.ID] = 0
}

// Remove deletes a post from the feed, e.g. after the member deleted it.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	delete(s.index, id)
	for pid, j := range s.index {
		if j > i {
			s.index[pid] = j - 1
		}
	}
	return true
}

// ApplyReaction folds an authoritative like result into the stored post so a
// later re-render of the list reflects it. Idempotent.
func (s *Session) ApplyReaction(id string, liked bool, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	p := &s.posts[i]
	p.LikesCount = count
	l := liked
	p.Liked = &l
	return true
}

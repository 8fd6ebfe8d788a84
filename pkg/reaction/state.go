package reaction

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"cbgateway/pkg/models"
)

// State is the authoritative reaction snapshot for one (member, entity) pair.
// Liked and Count are only meaningful when Known is set. Failed is a
// transient overlay on top of the steady state; it self-clears after the
// store's error window and is never persistent.
type State struct {
	Ref     models.EntityRef `json:"entity"`
	Liked   bool             `json:"liked"`
	Count   int              `json:"count"`
	Known   bool             `json:"known"`
	Pending bool             `json:"pending,omitempty"`
	Failed  bool             `json:"failed,omitempty"`
}

// ChangeFunc observes every state transition, including the error overlay
// raising and clearing.
type ChangeFunc func(memberID string, st State)

const (
	defaultErrorWindow = 2 * time.Second
	storeSize          = 4096
)

// Store is the single source of truth every rendered instance reads reaction
// state from. Bounded; a page view only ever has a handful of entities on
// screen, eviction just means the next render seeds again.
type Store struct {
	mu       sync.Mutex
	states   *lru.Cache[string, State]
	onChange ChangeFunc
	window   time.Duration
}

func NewStore() *Store {
	c, _ := lru.New[string, State](storeSize)
	return &Store{states: c, window: defaultErrorWindow}
}

// OnChange registers the fanout callback. Must be set before traffic.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// SetErrorWindow overrides how long the error overlay stays up.
func (s *Store) SetErrorWindow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = d
}

func stateKey(memberID string, ref models.EntityRef) string {
	return memberID + "#" + ref.Key()
}

// Get returns the current state for the pair, if any.
func (s *Store) Get(memberID string, ref models.EntityRef) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states.Get(stateKey(memberID, ref))
}

// Seed records the liked/count computed at render time from the entity's like
// list. It never overrides state the reconciler already established.
func (s *Store) Seed(memberID string, ref models.EntityRef, liked bool, count int) {
	if memberID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stateKey(memberID, ref)
	if _, ok := s.states.Get(k); ok {
		return
	}
	s.states.Add(k, State{Ref: ref, Liked: liked, Count: count, Known: true})
}

// Apply records an authoritative result and notifies subscribers. Applying an
// identical state twice is a no-op for observers.
func (s *Store) Apply(memberID string, ref models.EntityRef, liked bool, count int) State {
	s.mu.Lock()
	k := stateKey(memberID, ref)
	next := State{Ref: ref, Liked: liked, Count: count, Known: true}
	if prev, ok := s.states.Get(k); ok && prev == next {
		s.mu.Unlock()
		return next
	}
	s.states.Add(k, next)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(memberID, next)
	}
	return next
}

// beginToggle marks the control pending. False means a toggle is already
// outstanding for this pair and the caller must not start another.
func (s *Store) beginToggle(memberID string, ref models.EntityRef) bool {
	s.mu.Lock()
	k := stateKey(memberID, ref)
	st, _ := s.states.Get(k)
	if st.Pending {
		s.mu.Unlock()
		return false
	}
	st.Ref = ref
	st.Pending = true
	st.Failed = false
	s.states.Add(k, st)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(memberID, st)
	}
	return true
}

// fail clears the pending flag, raises the error overlay and schedules its
// expiry. The steady liked/count are left exactly as they were before the
// call.
func (s *Store) fail(memberID string, ref models.EntityRef) State {
	s.mu.Lock()
	k := stateKey(memberID, ref)
	st, _ := s.states.Get(k)
	st.Ref = ref
	st.Pending = false
	st.Failed = true
	s.states.Add(k, st)
	fn, window := s.onChange, s.window
	s.mu.Unlock()

	if fn != nil {
		fn(memberID, st)
	}

	time.AfterFunc(window, func() {
		s.mu.Lock()
		cur, ok := s.states.Get(k)
		if !ok || !cur.Failed || cur.Pending {
			s.mu.Unlock()
			return
		}
		cur.Failed = false
		s.states.Add(k, cur)
		fn := s.onChange
		s.mu.Unlock()
		if fn != nil {
			fn(memberID, cur)
		}
	})
	return st
}

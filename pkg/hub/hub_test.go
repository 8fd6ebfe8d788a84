package hub

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cbgateway/pkg/envelope"
)

// fakeConn feeds the read loop from a channel and records everything the hub
// writes back.
type fakeConn struct {
	in  chan []byte
	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{in: make(chan []byte, 8)} }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, raw, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, data)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) received(action string) []envelope.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var got []envelope.Envelope
	for _, raw := range f.out {
		if env, err := envelope.Unmarshal(raw); err == nil && env.Action == action {
			got = append(got, env)
		}
	}
	return got
}

func entityMsg(t *testing.T, action string, keys ...string) []byte {
	t.Helper()
	env := envelope.New(action, "board")
	raw, err := json.Marshal(map[string][]string{"entities": keys})
	require.NoError(t, err)
	env.Data = raw
	msg, err := env.Marshal()
	require.NoError(t, err)
	return msg
}

func TestPushReactionReachesEverySubscribedViewOfTheMember(t *testing.T) {
	h := New()
	h.SetStateSource(func(memberID, key string) (interface{}, bool) {
		if key == "posts/1" {
			return map[string]interface{}{"liked": true, "count": 2}, true
		}
		return nil, false
	})

	// the same entity rendered in two views of one member, a third view of
	// that member showing another entity, and a different member entirely
	feedCard := newFakeConn()
	modal := newFakeConn()
	otherEntity := newFakeConn()
	stranger := newFakeConn()

	var wg sync.WaitGroup
	start := func(c *fakeConn, member string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleConn(c, member, "", "key-"+member)
		}()
	}
	start(feedCard, "m1")
	start(modal, "m1")
	start(otherEntity, "m1")
	start(stranger, "m2")

	feedCard.in <- entityMsg(t, "subscribe", "posts/1")
	modal.in <- entityMsg(t, "subscribe", "posts/1")
	otherEntity.in <- entityMsg(t, "subscribe", "posts/2")
	stranger.in <- entityMsg(t, "subscribe", "posts/1")

	require.Eventually(t, func() bool {
		return len(feedCard.received("subscribe.result")) == 1 &&
			len(modal.received("subscribe.result")) == 1 &&
			len(otherEntity.received("subscribe.result")) == 1 &&
			len(stranger.received("subscribe.result")) == 1
	}, time.Second, time.Millisecond)

	// a view opened after a toggle starts from the store, not stale markup
	reply := feedCard.received("subscribe.result")[0]
	states, err := envelope.ParseData[map[string]map[string]interface{}](reply)
	require.NoError(t, err)
	assert.Contains(t, states["states"], "posts/1")

	h.PushReaction("m1", "posts/1", map[string]interface{}{"liked": true, "count": 3})

	assert.Len(t, feedCard.received("reaction.state"), 1)
	assert.Len(t, modal.received("reaction.state"), 1)
	assert.Empty(t, otherEntity.received("reaction.state"))
	assert.Empty(t, stranger.received("reaction.state"), "reaction state is scoped per member")

	for _, c := range []*fakeConn{feedCard, modal, otherEntity, stranger} {
		close(c.in)
	}
	wg.Wait()
}

func TestBroadcastKeyAndUnsubscribe(t *testing.T) {
	h := New()
	boardView := newFakeConn()
	strangerView := newFakeConn()
	elsewhere := newFakeConn()

	var wg sync.WaitGroup
	for _, c := range []struct {
		conn   *fakeConn
		member string
	}{{boardView, "m1"}, {strangerView, "m2"}, {elsewhere, "m2"}} {
		wg.Add(1)
		go func(conn *fakeConn, member string) {
			defer wg.Done()
			h.HandleConn(conn, member, "", "")
		}(c.conn, c.member)
	}

	boardView.in <- entityMsg(t, "subscribe", "feed/de-warren")
	strangerView.in <- entityMsg(t, "subscribe", "feed/de-warren")
	elsewhere.in <- entityMsg(t, "subscribe", "feed/ander-dorp")

	require.Eventually(t, func() bool {
		return len(boardView.received("subscribe.result")) == 1 &&
			len(strangerView.received("subscribe.result")) == 1 &&
			len(elsewhere.received("subscribe.result")) == 1
	}, time.Second, time.Millisecond)

	// feed events cross members but not entity keys
	h.BroadcastKey("feed/de-warren", "new_post", map[string]string{"id": "p1"})
	assert.Len(t, boardView.received("new_post"), 1)
	assert.Len(t, strangerView.received("new_post"), 1)
	assert.Empty(t, elsewhere.received("new_post"))

	// after unsubscribing, a view stops receiving
	strangerView.in <- entityMsg(t, "unsubscribe", "feed/de-warren")
	require.Eventually(t, func() bool {
		return len(strangerView.received("unsubscribe.result")) == 1
	}, time.Second, time.Millisecond)

	h.BroadcastKey("feed/de-warren", "new_post", map[string]string{"id": "p2"})
	assert.Len(t, boardView.received("new_post"), 2)
	assert.Len(t, strangerView.received("new_post"), 1)

	for _, c := range []*fakeConn{boardView, strangerView, elsewhere} {
		close(c.in)
	}
	wg.Wait()
}

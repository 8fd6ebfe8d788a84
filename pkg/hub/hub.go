package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"cbgateway/pkg/envelope"
)

// ActionHandler handles one request envelope from a connected view.
type ActionHandler func(c *Client, env envelope.Envelope)

// Conn is the slice of a websocket connection the hub drives. Satisfied by
// *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected view: a page, or a modal opened in it. The same
// entity may be on screen in several clients of the same member at once;
// per-entity subscriptions are how the hub keeps all of them in sync.
type Client struct {
	conn       Conn
	memberID   string
	memberName string
	sessionKey string

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	subMu sync.Mutex
	subs  map[string]struct{}

	localMu sync.Mutex
	locals  map[string]interface{}
}

func (c *Client) MemberID() string   { return c.memberID }
func (c *Client) MemberName() string { return c.memberName }

// SessionKey references the session record this connection authenticated
// with. Write actions re-read the bearer through it, so a session cleared or
// expired mid-connection stops authorizing immediately.
func (c *Client) SessionKey() string { return c.sessionKey }

// Authenticated reports whether the connection carries a member identity.
// Anonymous connections may read; like/comment/post actions must refuse them.
func (c *Client) Authenticated() bool { return c.memberID != "" }

// Context is cancelled when the view disconnects. Work started on behalf of
// this client must stop updating state once it is done.
func (c *Client) Context() context.Context { return c.ctx }

// Local and SetLocal hold per-connection state, such as the feed session for
// a group this view has open. Everything stored here dies with the socket.
func (c *Client) Local(key string) interface{} {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	return c.locals[key]
}

func (c *Client) SetLocal(key string, v interface{}) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	c.locals[key] = v
}

func (c *Client) EachLocal(fn func(key string, v interface{})) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	for k, v := range c.locals {
		fn(k, v)
	}
}

func (c *Client) subscribe(keys []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, k := range keys {
		if k != "" {
			c.subs[k] = struct{}{}
		}
	}
}

func (c *Client) unsubscribe(keys []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, k := range keys {
		delete(c.subs, k)
	}
}

func (c *Client) subscribed(key string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, ok := c.subs[key]
	return ok
}

func (c *Client) send(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] send error member=%s: %v", c.memberID, err)
	}
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[Conn]*Client
	byMember map[string][]*Client
	handlers map[string]ActionHandler

	// stateFor answers subscribe requests with the current authoritative
	// state per entity key, so a view opened after a toggle starts from the
	// store instead of stale markup. Keys without state are simply omitted.
	stateFor func(memberID, key string) (interface{}, bool)
}

func New() *Hub {
	return &Hub{
		clients:  make(map[Conn]*Client),
		byMember: make(map[string][]*Client),
		handlers: make(map[string]ActionHandler),
	}
}

func (h *Hub) On(action string, fn ActionHandler) {
	h.handlers[action] = fn
}

func (h *Hub) SetStateSource(fn func(memberID, key string) (interface{}, bool)) {
	h.stateFor = fn
}

// HandleConn owns a websocket connection for its whole lifetime. It must be
// called from the websocket upgrade handler and blocks until disconnect.
func (h *Hub) HandleConn(conn Conn, memberID, memberName, sessionKey string) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:       conn,
		memberID:   memberID,
		memberName: memberName,
		sessionKey: sessionKey,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]struct{}),
		locals:     make(map[string]interface{}),
	}

	h.mu.Lock()
	h.clients[conn] = c
	if memberID != "" {
		h.byMember[memberID] = append(h.byMember[memberID], c)
	}
	h.mu.Unlock()

	log.Printf("[HUB] client connected: member=%s total=%d", memberID, h.ClientCount())

	defer func() {
		cancel()
		h.mu.Lock()
		delete(h.clients, conn)
		if memberID != "" {
			conns := h.byMember[memberID]
			for i, cc := range conns {
				if cc == c {
					h.byMember[memberID] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			if len(h.byMember[memberID]) == 0 {
				delete(h.byMember, memberID)
			}
		}
		h.mu.Unlock()
		conn.Close()
		log.Printf("[HUB] client disconnected: member=%s total=%d", memberID, h.ClientCount())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := envelope.Unmarshal(raw)
		if err != nil {
			resp := envelope.Envelope{
				Action:    "error",
				Error:     &envelope.ErrorPayload{Code: 400, Message: "Ongeldig bericht"},
				Timestamp: time.Now().UnixMilli(),
			}
			data, _ := resp.Marshal()
			c.send(data)
			continue
		}

		// identity comes from the connection, never from the envelope
		env.MemberID = memberID
		env.MemberName = memberName

		switch env.Action {
		case "ping":
			pong := envelope.New("pong", "system")
			data, _ := pong.Marshal()
			c.send(data)
			continue
		case "subscribe":
			h.handleSubscribe(c, env)
			continue
		case "unsubscribe":
			h.handleUnsubscribe(c, env)
			continue
		}

		handler, ok := h.handlers[env.Action]
		if !ok {
			h.ReplyError(c, env, 404, "Onbekende actie: "+env.Action)
			continue
		}

		go handler(c, env)
	}
}

type subscribeReq struct {
	Entities []string `json:"entities"`
}

// handleSubscribe tags the connection with entity keys and replies with the
// known authoritative state for each, which is the initial state a freshly
// rendered instance must use.
func (h *Hub) handleSubscribe(c *Client, env envelope.Envelope) {
	req, err := envelope.ParseData[subscribeReq](env)
	if err != nil || len(req.Entities) == 0 {
		h.ReplyError(c, env, 400, "entities is verplicht")
		return
	}
	c.subscribe(req.Entities)

	states := make(map[string]interface{})
	if h.stateFor != nil {
		for _, key := range req.Entities {
			if st, ok := h.stateFor(c.memberID, key); ok {
				states[key] = st
			}
		}
	}
	h.Reply(c, env, map[string]interface{}{"states": states})
}

func (h *Hub) handleUnsubscribe(c *Client, env envelope.Envelope) {
	req, err := envelope.ParseData[subscribeReq](env)
	if err != nil {
		h.ReplyError(c, env, 400, "entities is verplicht")
		return
	}
	c.unsubscribe(req.Entities)
	h.Reply(c, env, map[string]interface{}{"ok": true})
}

// Reply sends a response to the connection that made the request.
func (h *Hub) Reply(c *Client, original envelope.Envelope, data interface{}) {
	env, err := envelope.NewReply(original, data)
	if err != nil {
		log.Printf("[HUB] reply marshal error: %v", err)
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	c.send(raw)
}

func (h *Hub) ReplyError(c *Client, original envelope.Envelope, code int, msg string) {
	env := envelope.NewError(original, code, msg)
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	c.send(raw)
}

// PushReaction delivers authoritative reaction state to every view of the
// member that has the entity on screen. Feed card and open modal both get the
// identical payload.
func (h *Hub) PushReaction(memberID, entityKey string, data interface{}) {
	env, err := envelope.NewEvent("reaction.state", "board", data)
	if err != nil {
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := append([]*Client(nil), h.byMember[memberID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if c.subscribed(entityKey) {
			c.send(raw)
		}
	}
}

// BroadcastKey sends an event to every connection subscribed to the key,
// regardless of member. Used for feed events such as new posts.
func (h *Hub) BroadcastKey(key, action string, data interface{}) {
	env, err := envelope.NewEvent(action, "board", data)
	if err != nil {
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.subscribed(key) {
			c.send(raw)
		}
	}
}

// Range visits every connected client.
func (h *Hub) Range(fn func(c *Client)) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		fn(c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) AuthenticatedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byMember)
}

package handlers

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"cbgateway/pkg/cache"
	"cbgateway/pkg/crowdbuilding"
	"cbgateway/pkg/envelope"
	"cbgateway/pkg/feed"
	"cbgateway/pkg/hub"
	"cbgateway/pkg/models"
	"cbgateway/pkg/reaction"
)

const maxBodyLen = 5000

// ──────────────────────────────────────────────
// BoardHandler — bulletin board (prikbord)
// ──────────────────────────────────────────────
//
// Feed browsing, comments and likes run over the hub so each view gets its
// own feed session, torn down with the socket. Post creation and deletion
// stay on REST because of the multipart image upload.

type BoardHandler struct {
	api   *crowdbuilding.Client
	hub   *hub.Hub
	redis *cache.Redis
	rec   *reaction.Reconciler
}

func NewBoard(api *crowdbuilding.Client, h *hub.Hub, r *cache.Redis, rec *reaction.Reconciler) *BoardHandler {
	return &BoardHandler{api: api, hub: h, redis: r, rec: rec}
}

func (b *BoardHandler) RegisterActions() {
	b.hub.On("board.feed", b.loadFeed)
	b.hub.On("board.comments", b.listComments)
	b.hub.On("board.comment.create", b.createComment)
	b.hub.On("board.like", b.toggleLike)
}

// tokenFor is the one accessor everything reads the member's bearer through.
// It re-resolves the session per action so a bearer that expires during a
// long-lived connection stops working immediately.
func (b *BoardHandler) tokenFor(c *hub.Client) string {
	if !c.Authenticated() {
		return ""
	}
	sess, ok := b.redis.Session(c.SessionKey())
	if !ok {
		return ""
	}
	return sess.Bearer
}

// bodyTooLong counts characters, not bytes; the limit shown to users is in
// tekens and must hold for multibyte text too.
func bodyTooLong(s string) bool {
	return utf8.RuneCountInString(s) > maxBodyLen
}

func feedLocalKey(slug string) string { return "feed:" + slug }
func feedEventKey(slug string) string { return "feed/" + slug }

// ──────────────────────────────────────────────
// FEED — cursor paginated, one session per view
// ──────────────────────────────────────────────

func (b *BoardHandler) loadFeed(c *hub.Client, env envelope.Envelope) {
	type feedReq struct {
		Slug string `json:"slug"`
	}
	req, _ := envelope.ParseData[feedReq](env)
	if req.Slug == "" {
		b.hub.ReplyError(c, env, 400, "slug is verplicht")
		return
	}

	sess := b.sessionFor(c, req.Slug)

	added, err := sess.LoadMore()
	if err != nil {
		if c.Context().Err() != nil {
			return // view is gone, drop the result
		}
		code, msg := statusAndMessage(err)
		log.Printf("[BOARD] feed %s failed for member=%s: %v", req.Slug, c.MemberID(), err)
		b.hub.ReplyError(c, env, code, msg)
		return
	}

	// seed the store with the rendered state of every new post, so toggles
	// and late-opened modals start from the same source of truth
	for i := range added {
		p := &added[i]
		b.rec.Store().Seed(c.MemberID(), p.Ref(), p.IsLikedBy(c.MemberID()), p.LikesCount)
	}

	b.hub.Reply(c, env, map[string]interface{}{
		"slug":     req.Slug,
		"posts":    added,
		"has_more": sess.HasMore(),
	})
}

func (b *BoardHandler) sessionFor(c *hub.Client, slug string) *feed.Session {
	if sess, ok := c.Local(feedLocalKey(slug)).(*feed.Session); ok {
		return sess
	}
	sess := feed.NewSession(c.Context(), b.fetcher(c, slug))
	c.SetLocal(feedLocalKey(slug), sess)
	return sess
}

func (b *BoardHandler) fetcher(c *hub.Client, slug string) feed.Fetcher {
	return func(ctx context.Context, cursor string) (*models.FeedPage, error) {
		return b.api.GroupPosts(ctx, b.tokenFor(c), slug, cursor)
	}
}

// ──────────────────────────────────────────────
// COMMENTS
// ──────────────────────────────────────────────

func (b *BoardHandler) listComments(c *hub.Client, env envelope.Envelope) {
	type commentsReq struct {
		PostID string `json:"post_id"`
	}
	req, _ := envelope.ParseData[commentsReq](env)
	if req.PostID == "" {
		b.hub.ReplyError(c, env, 400, "post_id is verplicht")
		return
	}

	comments, err := b.api.Comments(c.Context(), b.tokenFor(c), req.PostID)
	if err != nil {
		code, msg := statusAndMessage(err)
		b.hub.ReplyError(c, env, code, msg)
		return
	}

	for i := range comments {
		cm := &comments[i]
		b.rec.Store().Seed(c.MemberID(), cm.Ref(req.PostID), cm.IsLikedBy(c.MemberID()), cm.LikesCount)
	}

	b.hub.Reply(c, env, map[string]interface{}{
		"post_id":  req.PostID,
		"comments": comments,
	})
}

func (b *BoardHandler) createComment(c *hub.Client, env envelope.Envelope) {
	if !c.Authenticated() {
		b.hub.ReplyError(c, env, 401, "Log in om te reageren")
		return
	}

	type createReq struct {
		PostID string `json:"post_id"`
		Body   string `json:"body"`
	}
	req, _ := envelope.ParseData[createReq](env)
	if req.PostID == "" {
		b.hub.ReplyError(c, env, 400, "post_id is verplicht")
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		b.hub.ReplyError(c, env, 400, "Reactie mag niet leeg zijn")
		return
	}
	if bodyTooLong(body) {
		b.hub.ReplyError(c, env, 400, "Reactie is te lang (max 5000 tekens)")
		return
	}

	comment, err := b.api.CreateComment(c.Context(), b.tokenFor(c), req.PostID, body)
	if err != nil {
		code, msg := statusAndMessage(err)
		log.Printf("[BOARD] comment create on post=%s failed: %v", req.PostID, err)
		b.hub.ReplyError(c, env, code, msg)
		return
	}

	log.Printf("[BOARD] comment created: id=%s post=%s member=%s", comment.ID, req.PostID, c.MemberID())
	b.hub.Reply(c, env, comment)

	postKey := models.EntityRef{Kind: models.KindPost, ID: req.PostID}.Key()
	b.hub.BroadcastKey(postKey, "new_comment", comment)
}

// ──────────────────────────────────────────────
// LIKES — everything goes through the reconciler
// ──────────────────────────────────────────────

func (b *BoardHandler) toggleLike(c *hub.Client, env envelope.Envelope) {
	if !c.Authenticated() {
		// no network call is made for anonymous toggles
		b.hub.ReplyError(c, env, 401, "Log in om te liken")
		return
	}

	req, _ := envelope.ParseData[models.EntityRef](env)
	if !req.Valid() {
		b.hub.ReplyError(c, env, 400, "Ongeldige entiteit")
		return
	}

	st, err := b.rec.Toggle(c.Context(), c.MemberID(), b.tokenFor(c), req)
	if err != nil {
		if err == reaction.ErrToggleInFlight {
			b.hub.ReplyError(c, env, 409, "Nog bezig, even geduld")
			return
		}
		code, msg := statusAndMessage(err)
		b.hub.ReplyError(c, env, code, msg)
		return
	}

	b.hub.Reply(c, env, st)
}

// ReactionChanged is the store's fanout hook: push the state to every
// subscribed view of the member and fold settled results into their feed
// sessions.
func (b *BoardHandler) ReactionChanged(memberID string, st reaction.State) {
	b.hub.PushReaction(memberID, st.Ref.Key(), st)

	if st.Pending || st.Failed || st.Ref.Kind != models.KindPost {
		return
	}
	b.hub.Range(func(c *hub.Client) {
		if c.MemberID() != memberID {
			return
		}
		c.EachLocal(func(_ string, v interface{}) {
			if sess, ok := v.(*feed.Session); ok {
				sess.ApplyReaction(st.Ref.ID, st.Liked, st.Count)
			}
		})
	})
}

// StateFor answers the hub's subscribe requests from the reaction store.
func (b *BoardHandler) StateFor(memberID, key string) (interface{}, bool) {
	ref, ok := models.ParseEntityKey(key)
	if !ok {
		return nil, false
	}
	st, ok := b.rec.Store().Get(memberID, ref)
	if !ok {
		return nil, false
	}
	return st, true
}

// ──────────────────────────────────────────────
// REST mirror — for callers without a socket
// ──────────────────────────────────────────────
//
// Single-page proxies over the same client and reconciler the hub actions
// use. No cursor state lives here; the caller passes the cursor it got back.

// ListPosts handles GET /groups/:slug/posts?cursor=.
func (b *BoardHandler) ListPosts(c *fiber.Ctx) error {
	slug := c.Params("slug")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	page, err := b.api.GroupPosts(c.Context(), token, slug, c.Query("cursor"))
	if err != nil {
		return apiError(c, err)
	}
	for i := range page.Data {
		p := &page.Data[i]
		b.rec.Store().Seed(memberID, p.Ref(), p.IsLikedBy(memberID), p.LikesCount)
	}
	return c.JSON(page)
}

// ListComments handles GET /posts/:id/comments.
func (b *BoardHandler) ListComments(c *fiber.Ctx) error {
	postID := c.Params("id")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	comments, err := b.api.Comments(c.Context(), token, postID)
	if err != nil {
		return apiError(c, err)
	}
	for i := range comments {
		cm := &comments[i]
		b.rec.Store().Seed(memberID, cm.Ref(postID), cm.IsLikedBy(memberID), cm.LikesCount)
	}
	return c.JSON(fiber.Map{"post_id": postID, "comments": comments})
}

// AddComment handles POST /posts/:id/comments.
func (b *BoardHandler) AddComment(c *fiber.Ctx) error {
	postID := c.Params("id")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Ongeldig verzoek"})
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Reactie mag niet leeg zijn"})
	}
	if bodyTooLong(body) {
		return c.Status(400).JSON(fiber.Map{"error": "Reactie is te lang (max 5000 tekens)"})
	}

	comment, err := b.api.CreateComment(c.Context(), token, postID, body)
	if err != nil {
		log.Printf("[BOARD] comment create on post=%s failed: %v", postID, err)
		return apiError(c, err)
	}

	postKey := models.EntityRef{Kind: models.KindPost, ID: postID}.Key()
	b.hub.BroadcastKey(postKey, "new_comment", comment)

	log.Printf("[BOARD] comment created: id=%s post=%s member=%s", comment.ID, postID, memberID)
	return c.Status(201).JSON(comment)
}

// LikePost handles POST /posts/:id/like.
func (b *BoardHandler) LikePost(c *fiber.Ctx) error {
	return b.likeREST(c, models.EntityRef{Kind: models.KindPost, ID: c.Params("id")})
}

// LikeComment handles POST /comments/:id/like. The parent post id comes from
// the body; the reconciler needs it for the canonical re-fetch.
func (b *BoardHandler) LikeComment(c *fiber.Ctx) error {
	var req struct {
		PostID string `json:"post_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PostID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "post_id is verplicht"})
	}
	return b.likeREST(c, models.EntityRef{Kind: models.KindComment, ID: c.Params("id"), PostID: req.PostID})
}

func (b *BoardHandler) likeREST(c *fiber.Ctx, ref models.EntityRef) error {
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)
	if !ref.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "Ongeldige entiteit"})
	}

	st, err := b.rec.Toggle(c.Context(), memberID, token, ref)
	if err != nil {
		if err == reaction.ErrToggleInFlight {
			return c.Status(409).JSON(fiber.Map{"error": "Nog bezig, even geduld"})
		}
		return apiError(c, err)
	}
	return c.JSON(st)
}

// ──────────────────────────────────────────────
// POSTS — REST because of the multipart upload
// ──────────────────────────────────────────────

// CreatePost handles POST /groups/:slug/posts (multipart body + images[]).
func (b *BoardHandler) CreatePost(c *fiber.Ctx) error {
	slug := c.Params("slug")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	body := strings.TrimSpace(c.FormValue("body"))
	if body == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Bericht mag niet leeg zijn"})
	}
	if bodyTooLong(body) {
		return c.Status(400).JSON(fiber.Map{"error": "Bericht is te lang (max 5000 tekens)"})
	}

	var uploads []crowdbuilding.Upload
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files := form.File["images[]"]
		if len(files) == 0 {
			files = form.File["images"]
		}
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "Afbeelding kon niet worden gelezen"})
			}
			defer f.Close()
			uploads = append(uploads, crowdbuilding.Upload{Name: fh.Filename, Reader: f})
		}
	}

	post, err := b.api.CreatePost(c.Context(), token, slug, body, uploads)
	if err != nil {
		log.Printf("[BOARD] post create in %s failed for member=%s: %v", slug, memberID, err)
		return apiError(c, err)
	}

	b.rec.Store().Seed(memberID, post.Ref(), post.IsLikedBy(memberID), post.LikesCount)

	// newest-first into this member's live feed sessions, and an event for
	// every view that has the board open
	b.hub.Range(func(hc *hub.Client) {
		if hc.MemberID() != memberID {
			return
		}
		if sess, ok := hc.Local(feedLocalKey(slug)).(*feed.Session); ok {
			sess.Prepend(*post)
		}
	})
	b.hub.BroadcastKey(feedEventKey(slug), "new_post", post)

	log.Printf("[BOARD] post created: id=%s group=%s member=%s", post.ID, slug, memberID)
	return c.Status(201).JSON(post)
}

// DeletePost handles DELETE /groups/:slug/posts/:id.
func (b *BoardHandler) DeletePost(c *fiber.Ctx) error {
	slug := c.Params("slug")
	id := c.Params("id")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	if err := b.api.DeletePost(c.Context(), token, slug, id); err != nil {
		log.Printf("[BOARD] post delete %s failed for member=%s: %v", id, memberID, err)
		return apiError(c, err)
	}

	b.hub.Range(func(hc *hub.Client) {
		if sess, ok := hc.Local(feedLocalKey(slug)).(*feed.Session); ok {
			sess.Remove(id)
		}
	})
	b.hub.BroadcastKey(feedEventKey(slug), "post_deleted", fiber.Map{"id": id})

	log.Printf("[BOARD] post deleted: id=%s group=%s member=%s", id, slug, memberID)
	return c.JSON(fiber.Map{"id": id, "status": "deleted"})
}

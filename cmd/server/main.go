package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"

	"cbgateway/pkg/cache"
	"cbgateway/pkg/crowdbuilding"
	"cbgateway/pkg/handlers"
	"cbgateway/pkg/hub"
	"cbgateway/pkg/middleware"
	"cbgateway/pkg/reaction"
	"cbgateway/pkg/server"
)

func main() {
	godotenv.Load()

	log.Println("[GATEWAY] Connecting to Redis...")
	redis := cache.New()
	defer redis.Close()
	log.Println("[GATEWAY] Redis connected")

	deviceName := os.Getenv("CROWDBUILDING_DEVICE_NAME")
	if deviceName == "" {
		deviceName = "crowdbuilding-gateway"
	}
	api := crowdbuilding.New(os.Getenv("CROWDBUILDING_API_URL"), deviceName)

	wsHub := hub.New()
	store := reaction.NewStore()
	reconciler := reaction.NewReconciler(api, store)

	session := handlers.NewSession(api, redis)
	community := handlers.NewCommunity(api, redis)
	board := handlers.NewBoard(api, wsHub, redis, reconciler)

	store.OnChange(board.ReactionChanged)
	wsHub.SetStateSource(board.StateFor)
	board.RegisterActions()

	app := server.NewApp("cb-gateway")
	app.Use(middleware.Identity(redis))

	app.Post("/session", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), session.Exchange)

	// logout only needs the presented credential; a session that already
	// expired still logs out cleanly
	app.Post("/session/logout", session.Logout)
	app.Get("/session/avatar", middleware.RequireMember, session.Avatar)

	app.Get("/community/:kind/:id", community.Detail)
	follow := app.Group("/community/:kind/:id", middleware.RequireMember)
	follow.Post("/follow", community.Follow)
	follow.Post("/unfollow", community.Unfollow)

	app.Get("/groups/:slug/posts", board.ListPosts)
	posts := app.Group("/groups/:slug/posts", middleware.RequireMember)
	posts.Post("/", board.CreatePost)
	posts.Delete("/:id", board.DeletePost)

	app.Get("/posts/:id/comments", board.ListComments)
	app.Post("/posts/:id/comments", middleware.RequireMember, board.AddComment)
	app.Post("/posts/:id/like", middleware.RequireMember, board.LikePost)
	app.Post("/comments/:id/like", middleware.RequireMember, board.LikeComment)

	app.Get("/hub/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"clients":       wsHub.ClientCount(),
			"authenticated": wsHub.AuthenticatedCount(),
		})
	})

	app.Use("/ws", parseWSMember(redis))

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		memberID, _ := c.Locals("member_id").(string)
		memberName, _ := c.Locals("member_name").(string)
		sessionKey, _ := c.Locals("session_key").(string)
		wsHub.HandleConn(c, memberID, memberName, sessionKey)
	}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	addr := "0.0.0.0:" + port
	log.Printf("[GATEWAY] WebSocket: wss://<domain>/ws")
	log.Printf("[GATEWAY] Server starting on %s", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("[GATEWAY] Failed to start: %v", err)
	}
}

// parseWSMember resolves the optional member identity before the websocket
// upgrade. Identity comes from the session record keyed by the presented
// credential, never from token claims. Anonymous connections are allowed;
// write actions refuse them later.
func parseWSMember(redis *cache.Redis) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tokenStr := c.Query("token")
		if tokenStr == "" {
			authHeader := c.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenStr = authHeader[7:]
			}
		}

		memberID := ""
		memberName := ""
		sessionKey := ""
		if tokenStr != "" {
			sessionKey = middleware.SessionKey(tokenStr)
			if sess, ok := redis.Session(sessionKey); ok {
				memberID = sess.MemberID
				if avatar, ok := redis.Avatar(memberID); ok {
					memberName = avatar.Name
				}
			}
		}

		c.Locals("member_id", memberID)
		c.Locals("member_name", memberName)
		c.Locals("session_key", sessionKey)
		return c.Next()
	}
}

package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"cbgateway/pkg/cache"
	"cbgateway/pkg/crowdbuilding"
)

type CommunityHandler struct {
	api   *crowdbuilding.Client
	redis *cache.Redis
}

func NewCommunity(api *crowdbuilding.Client, redis *cache.Redis) *CommunityHandler {
	return &CommunityHandler{api: api, redis: redis}
}

// Cache key includes the member id because permission flags are personalized
func detailKey(kind crowdbuilding.CommunityKind, id, memberID string) string {
	return fmt.Sprintf("community:%s:%s:m%s", kind, id, memberID)
}

// detailPattern matches every member's cached copy of one community. A follow
// change moves followers_count for everyone, so invalidation must sweep all
// personalized entries, not just the caller's.
func detailPattern(kind crowdbuilding.CommunityKind, id string) string {
	return fmt.Sprintf("community:%s:%s:*", kind, id)
}

// Detail handles GET /community/:kind/:id for groups, plots and housing
// forms. Works for anonymous callers too, minus the personalized flags.
func (ch *CommunityHandler) Detail(c *fiber.Ctx) error {
	kind, ok := crowdbuilding.ParseCommunityKind(c.Params("kind"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "Niet gevonden"})
	}
	id := c.Params("id")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	key := detailKey(kind, id, memberID)
	var cached map[string]interface{}
	if ch.redis.Get(key, &cached) {
		return c.JSON(cached)
	}

	community, err := ch.api.Community(c.Context(), token, kind, id)
	if err != nil {
		return apiError(c, err)
	}

	ch.redis.Set(key, community, 30*time.Second)
	return c.JSON(community)
}

// Follow handles POST /community/:kind/:id/follow. The fresh detail record is
// re-fetched afterwards so the follower count in the response is the server's,
// not a guess.
func (ch *CommunityHandler) Follow(c *fiber.Ctx) error {
	return ch.toggleFollow(c, true)
}

// Unfollow handles POST /community/:kind/:id/unfollow.
func (ch *CommunityHandler) Unfollow(c *fiber.Ctx) error {
	return ch.toggleFollow(c, false)
}

func (ch *CommunityHandler) toggleFollow(c *fiber.Ctx, follow bool) error {
	kind, ok := crowdbuilding.ParseCommunityKind(c.Params("kind"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "Niet gevonden"})
	}
	id := c.Params("id")
	memberID, _ := c.Locals("member_id").(string)
	token, _ := c.Locals("cb_token").(string)

	var err error
	if follow {
		err = ch.api.Follow(c.Context(), token, kind, id)
	} else {
		err = ch.api.Unfollow(c.Context(), token, kind, id)
	}
	if err != nil {
		log.Printf("[COMMUNITY] follow toggle %s/%s failed for member=%s: %v", kind, id, memberID, err)
		return apiError(c, err)
	}

	ch.redis.DelPattern(detailPattern(kind, id))

	community, err := ch.api.Community(c.Context(), token, kind, id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(community)
}

package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"cbgateway/pkg/cache"
	"cbgateway/pkg/crowdbuilding"
	"cbgateway/pkg/middleware"
)

// DefaultAvatarURL is the picture shown for members without one, the same
// placeholder the site templates use.
const DefaultAvatarURL = "https://cdn.prod.website-files.com/crowdbuilding/default-avatar.svg"

const (
	maxTokenTTL     = 24 * time.Hour
	defaultTokenTTL = time.Hour
)

type SessionHandler struct {
	api   *crowdbuilding.Client
	redis *cache.Redis
}

func NewSession(api *crowdbuilding.Client, redis *cache.Redis) *SessionHandler {
	return &SessionHandler{api: api, redis: redis}
}

// Exchange handles POST /session: trades the Memberstack token for a
// CrowdBuilding bearer and caches the session keyed by the exact presented
// credential, so later requests can only resolve it by replaying that same
// token. The member id claim is read only after the upstream accepted the
// token. The cached session never outlives the Memberstack token's own
// expiry.
func (sh *SessionHandler) Exchange(c *fiber.Ctx) error {
	var req struct {
		MemberstackToken string `json:"memberstack_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.MemberstackToken == "" {
		return c.Status(400).JSON(fiber.Map{"error": "memberstack_token is verplicht"})
	}

	token, err := sh.api.ExchangeToken(c.Context(), req.MemberstackToken)
	if err != nil {
		log.Printf("[SESSION] token exchange failed: %v", err)
		return apiError(c, err)
	}

	memberID, err := middleware.MemberID(req.MemberstackToken)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Ongeldig Memberstack token"})
	}

	ttl := defaultTokenTTL
	if exp := middleware.TokenExpiry(req.MemberstackToken); !exp.IsZero() {
		if until := time.Until(exp); until > 0 && until < maxTokenTTL {
			ttl = until
		}
	}
	sh.redis.SetSession(middleware.SessionKey(req.MemberstackToken),
		cache.Session{MemberID: memberID, Bearer: token}, ttl)

	// profile fetch is best-effort; the session is usable without it
	avatar := cache.Avatar{URL: DefaultAvatarURL, LastUpdated: time.Now().UnixMilli()}
	member, err := sh.api.Me(c.Context(), token)
	if err != nil {
		log.Printf("[SESSION] profile fetch failed for member=%s: %v", memberID, err)
	} else {
		avatar.Name = member.Name
		if member.AvatarURL != "" {
			avatar.URL = member.AvatarURL
		}
		sh.redis.SetAvatar(memberID, avatar)
	}

	log.Printf("[SESSION] session established for member=%s", memberID)
	return c.JSON(fiber.Map{
		"member_id": memberID,
		"member":    member,
		"avatar":    avatar,
	})
}

// Logout handles POST /session/logout: the explicit cache-clear that is the
// only way a session is invalidated besides TTL expiry. It works on the
// presented credential alone; a member whose session already expired still
// gets a clean logout, not a 401.
func (sh *SessionHandler) Logout(c *fiber.Ctx) error {
	if key, _ := c.Locals("session_key").(string); key != "" {
		sh.redis.ClearSession(key)
	}
	return c.JSON(fiber.Map{"status": "uitgelogd"})
}

// Avatar handles GET /session/avatar.
func (sh *SessionHandler) Avatar(c *fiber.Ctx) error {
	memberID, _ := c.Locals("member_id").(string)
	if avatar, ok := sh.redis.Avatar(memberID); ok {
		return c.JSON(avatar)
	}
	return c.JSON(cache.Avatar{URL: DefaultAvatarURL})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"cbgateway/pkg/crowdbuilding"
)

// statusAndMessage maps an upstream error to an HTTP-ish code and a localized
// message. Used by both the REST handlers and the hub reply path so a failure
// looks the same to a view no matter which transport surfaced it.
func statusAndMessage(err error) (int, string) {
	switch {
	case errors.Is(err, crowdbuilding.ErrAuthRequired):
		return 401, "Log in om deze actie uit te voeren"
	case errors.Is(err, crowdbuilding.ErrPermissionDenied):
		return 403, "Je bent geen lid van deze groep"
	case errors.Is(err, crowdbuilding.ErrNotFound):
		return 404, "Niet gevonden"
	case errors.Is(err, crowdbuilding.ErrValidation):
		return 422, "Controleer je invoer"
	case errors.Is(err, crowdbuilding.ErrServer):
		return 502, "De server reageert even niet, probeer het later opnieuw"
	default:
		return 502, "Er ging iets mis, probeer het opnieuw"
	}
}

func apiError(c *fiber.Ctx, err error) error {
	code, msg := statusAndMessage(err)
	body := fiber.Map{"error": msg}
	var apiErr *crowdbuilding.APIError
	if code == 422 && errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		body["fields"] = apiErr.Fields
	}
	return c.Status(code).JSON(body)
}

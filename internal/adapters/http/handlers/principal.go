package handlers

import (
	"ssc-carecard/internal/core/services"

	"github.com/gofiber/fiber/v2"
)

// principalFrom builds the service-layer principal from the values the auth
// middleware stored in the request context
func principalFrom(c *fiber.Ctx) services.Principal {
	p := services.Principal{}
	if v, ok := c.Locals("userID").(uint); ok {
		p.UserID = v
	}
	if v, ok := c.Locals("username").(string); ok {
		p.Username = v
	}
	if v, ok := c.Locals("role").(string); ok {
		p.Role = v
	}
	if v, ok := c.Locals("siteID").(*uint); ok {
		p.SiteID = v
	}
	return p
}

package handlers

import (
	"errors"

	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/core/services"
	"ssc-carecard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// SiteHandler handles partner site endpoints
type SiteHandler struct {
	siteService *services.SiteService
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(siteService *services.SiteService) *SiteHandler {
	return &SiteHandler{siteService: siteService}
}

// CreateSiteRequest represents a site registration request
type CreateSiteRequest struct {
	Name         string           `json:"name"`
	TownCode     string           `json:"town_code"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
}

// CreateSite registers a partner site
// @Summary Create site
// @Description Register a new partner site; the public code is generated (Admin only)
// @Tags Sites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateSiteRequest true "Site data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /sites [post]
func (h *SiteHandler) CreateSite(c *fiber.Ctx) error {
	var req CreateSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	site, err := h.siteService.Create(c.Context(), principalFrom(c), &services.CreateSiteInput{
		Name:         req.Name,
		TownCode:     req.TownCode,
		DiscountRate: req.DiscountRate,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to manage sites")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Name, a 4-digit town code and a rate between 0 and 100 are required")
		case errors.Is(err, domain.ErrDuplicateEntry):
			return response.Conflict(c, "Could not allocate a unique site code, try again")
		default:
			return response.InternalServerError(c, "Failed to create site")
		}
	}

	return response.Created(c, "Site created successfully", fiber.Map{
		"site": site,
	})
}

// GetSite gets a site by its public code
// @Summary Get site
// @Description Get a partner site by code
// @Tags Sites
// @Produce json
// @Security BearerAuth
// @Param code path string true "Site code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /sites/{code} [get]
func (h *SiteHandler) GetSite(c *fiber.Ctx) error {
	site, err := h.siteService.GetByCode(c.Context(), c.Params("code"))
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			return response.NotFound(c, "Site not found")
		}
		return response.InternalServerError(c, "Failed to get site")
	}

	return response.Success(c, "Site retrieved successfully", fiber.Map{
		"site": site,
	})
}

// ListSites lists all sites
// @Summary List sites
// @Description List all partner sites
// @Tags Sites
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /sites [get]
func (h *SiteHandler) ListSites(c *fiber.Ctx) error {
	sites, err := h.siteService.List(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to list sites")
	}

	return response.Success(c, "Sites retrieved successfully", fiber.Map{
		"sites": sites,
	})
}

// UpdateSiteRequest represents a site update request
type UpdateSiteRequest struct {
	Name         *string          `json:"name,omitempty"`
	Status       *string          `json:"status,omitempty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	ClearRate    bool             `json:"clear_rate,omitempty"`
}

// UpdateSite updates a site's name, status, or discount override
// @Summary Update site
// @Description Update a site; code and town code are immutable (Admin only)
// @Tags Sites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Site code"
// @Param body body UpdateSiteRequest true "Fields to update"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /sites/{code} [patch]
func (h *SiteHandler) UpdateSite(c *fiber.Ctx) error {
	var req UpdateSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	site, err := h.siteService.Update(c.Context(), principalFrom(c), c.Params("code"), &services.UpdateSiteInput{
		Name:         req.Name,
		Status:       req.Status,
		DiscountRate: req.DiscountRate,
		ClearRate:    req.ClearRate,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to manage sites")
		case errors.Is(err, domain.ErrSiteNotFound):
			return response.NotFound(c, "Site not found")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid name, status, or discount rate")
		default:
			return response.InternalServerError(c, "Failed to update site")
		}
	}

	return response.Success(c, "Site updated successfully", fiber.Map{
		"site": site,
	})
}

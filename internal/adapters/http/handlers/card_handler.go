package handlers

import (
	"errors"
	"strconv"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/core/services"
	"ssc-carecard/internal/pkg/pagination"
	"ssc-carecard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CardHandler handles card and holder endpoints
type CardHandler struct {
	cardService *services.CardService
}

// NewCardHandler creates a new card handler
func NewCardHandler(cardService *services.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// IssueCardRequest represents a card issuance request
type IssueCardRequest struct {
	HolderID   uint   `json:"holder_id"`
	TownCode   string `json:"town_code"`
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD
}

// IssueCard issues a new card
// @Summary Issue card
// @Description Issue a new card for a holder (Staff/Admin only)
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body IssueCardRequest true "Issuance data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cards [post]
func (h *CardHandler) IssueCard(c *fiber.Ctx) error {
	var req IssueCardRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.HolderID == 0 {
		return response.BadRequest(c, "Holder ID is required")
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return response.BadRequest(c, "Expiry date must be YYYY-MM-DD")
	}

	card, err := h.cardService.IssueCard(c.Context(), principalFrom(c), &services.IssueCardInput{
		HolderID:   req.HolderID,
		TownCode:   req.TownCode,
		ExpiryDate: expiry.Add(24*time.Hour - time.Second), // valid through end of day
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to issue cards")
		case errors.Is(err, domain.ErrHolderNotFound):
			return response.NotFound(c, "Holder not found")
		case errors.Is(err, domain.ErrHolderInactive):
			return response.UnprocessableEntity(c, "Holder is inactive", domain.ReasonHolderInactive)
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid town code or expiry date")
		case errors.Is(err, domain.ErrSequenceExhausted):
			return response.Conflict(c, "Serial sequence exhausted for this month and town")
		case errors.Is(err, domain.ErrStoreUnavailable):
			return response.ServiceUnavailable(c, "Counter store unavailable, try again")
		default:
			return response.InternalServerError(c, "Failed to issue card")
		}
	}

	return response.Created(c, "Card issued successfully", fiber.Map{
		"card": card.ToResponse(),
	})
}

// VerifyRequest represents a verify request
type VerifyRequest struct {
	Serial string `json:"serial"`
}

// Verify verifies a card
// @Summary Verify card
// @Description Check whether a card is valid for billing; returns a reason code when not
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VerifyRequest true "Card serial"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /cards/verify [post]
func (h *CardHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Serial == "" {
		return response.BadRequest(c, "Serial is required")
	}

	result, err := h.cardService.Verify(c.Context(), req.Serial)
	if err != nil {
		return response.InternalServerError(c, "Failed to verify card")
	}

	return response.Success(c, "Card verified", fiber.Map{
		"valid":       result.Valid,
		"reason":      result.Reason,
		"status":      result.Status,
		"expiry_date": result.ExpiryDate,
	})
}

// GetCard gets a card by serial
// @Summary Get card
// @Description Get a card by serial number
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param serial path string true "Card serial"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /cards/{serial} [get]
func (h *CardHandler) GetCard(c *fiber.Ctx) error {
	card, err := h.cardService.GetBySerial(c.Context(), c.Params("serial"))
	if err != nil {
		return response.NotFound(c, "Card not found")
	}

	return response.Success(c, "Card retrieved successfully", fiber.Map{
		"card": card.ToResponse(),
	})
}

// ListCards lists cards with pagination
// @Summary List cards
// @Description List issued cards (Staff/Admin only)
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /cards [get]
func (h *CardHandler) ListCards(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	cards, total, err := h.cardService.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list cards")
	}

	items := make([]*models.CardResponse, 0, len(cards))
	for _, card := range cards {
		items = append(items, card.ToResponse())
	}

	return response.Success(c, "Cards retrieved successfully", fiber.Map{
		"cards": items,
		"meta":  pagination.GetMeta(params, total),
	})
}

// Suspend suspends an active card
// @Summary Suspend card
// @Description Move an ACTIVE card to INACTIVE (Staff/Admin only)
// @Tags Cards
// @Produce json
// @Security BearerAuth
// @Param serial path string true "Card serial"
// @Success 200 {object} response.Response
// @Router /cards/{serial}/suspend [post]
func (h *CardHandler) Suspend(c *fiber.Ctx) error {
	card, err := h.cardService.Suspend(c.Context(), principalFrom(c), c.Params("serial"))
	return h.transitionResponse(c, card, err, "Card suspended")
}

// Reactivate reactivates a suspended card
// @Summary Reactivate card
// @Description Move an INACTIVE card back to ACTIVE if still within expiry (Staff/Admin only)
// @Tags Cards
// @Produce json
// @Security BearerAuth
// @Param serial path string true "Card serial"
// @Success 200 {object} response.Response
// @Router /cards/{serial}/reactivate [post]
func (h *CardHandler) Reactivate(c *fiber.Ctx) error {
	card, err := h.cardService.Reactivate(c.Context(), principalFrom(c), c.Params("serial"))
	return h.transitionResponse(c, card, err, "Card reactivated")
}

// ReportLost reports a card as lost
// @Summary Report card lost
// @Description Move an ACTIVE card to LOST (Staff/Admin only)
// @Tags Cards
// @Produce json
// @Security BearerAuth
// @Param serial path string true "Card serial"
// @Success 200 {object} response.Response
// @Router /cards/{serial}/report-lost [post]
func (h *CardHandler) ReportLost(c *fiber.Ctx) error {
	card, err := h.cardService.ReportLost(c.Context(), principalFrom(c), c.Params("serial"))
	return h.transitionResponse(c, card, err, "Card reported lost")
}

// RenewRequest represents a renewal request
type RenewRequest struct {
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD
}

// Renew renews a card
// @Summary Renew card
// @Description Renew a card to ACTIVE with a new expiry date (Staff/Admin only)
// @Tags Cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param serial path string true "Card serial"
// @Param body body RenewRequest true "New expiry date"
// @Success 200 {object} response.Response
// @Router /cards/{serial}/renew [post]
func (h *CardHandler) Renew(c *fiber.Ctx) error {
	var req RenewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return response.BadRequest(c, "Expiry date must be YYYY-MM-DD")
	}

	card, err := h.cardService.Renew(c.Context(), principalFrom(c), c.Params("serial"),
		expiry.Add(24*time.Hour-time.Second))
	return h.transitionResponse(c, card, err, "Card renewed")
}

// transitionResponse maps lifecycle transition outcomes to HTTP responses
func (h *CardHandler) transitionResponse(c *fiber.Ctx, card *models.Card, err error, message string) error {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to manage cards")
		case errors.Is(err, domain.ErrCardNotFound):
			return response.NotFound(c, "Card not found")
		case errors.Is(err, domain.ErrCardExpired):
			return response.UnprocessableEntity(c, "Card has expired, renew it first", domain.ReasonCardExpired)
		case errors.Is(err, domain.ErrCardNotActive):
			return response.UnprocessableEntity(c, "Card is not in a valid state for this action", domain.ReasonCardInactive)
		case errors.Is(err, domain.ErrHolderInactive):
			return response.UnprocessableEntity(c, "Holder is inactive", domain.ReasonHolderInactive)
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Invalid input")
		default:
			return response.InternalServerError(c, "Failed to update card")
		}
	}

	return response.Success(c, message, fiber.Map{
		"card": card.ToResponse(),
	})
}

// ============================================================
// Holders
// ============================================================

// CreateHolderRequest represents holder registration
type CreateHolderRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// CreateHolder registers a card holder
// @Summary Create holder
// @Description Register a new card holder (Staff/Admin only)
// @Tags Holders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateHolderRequest true "Holder data"
// @Success 201 {object} response.Response
// @Router /holders [post]
func (h *CardHandler) CreateHolder(c *fiber.Ctx) error {
	var req CreateHolderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.FullName == "" {
		return response.BadRequest(c, "Full name is required")
	}

	holder := &models.Holder{FullName: req.FullName, Phone: req.Phone}
	if err := h.cardService.CreateHolder(c.Context(), principalFrom(c), holder); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return response.Forbidden(c, "You don't have permission to manage holders")
		}
		return response.InternalServerError(c, "Failed to create holder")
	}

	return response.Created(c, "Holder created successfully", fiber.Map{
		"holder": holder,
	})
}

// ListHolders lists holders
// @Summary List holders
// @Description List card holders (Staff/Admin only)
// @Tags Holders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /holders [get]
func (h *CardHandler) ListHolders(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	holders, total, err := h.cardService.ListHolders(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list holders")
	}

	return response.Success(c, "Holders retrieved successfully", fiber.Map{
		"holders": holders,
		"meta":    pagination.GetMeta(params, total),
	})
}

// DeactivateHolder deactivates a holder and forces their cards INACTIVE
// @Summary Deactivate holder
// @Description Deactivate a holder; all their cards become INACTIVE (Staff/Admin only)
// @Tags Holders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Holder ID"
// @Success 200 {object} response.Response
// @Router /holders/{id}/deactivate [patch]
func (h *CardHandler) DeactivateHolder(c *fiber.Ctx) error {
	return h.setHolderActive(c, false)
}

// ActivateHolder reactivates a holder
// @Summary Activate holder
// @Description Reactivate a holder; cards return to ACTIVE only if unexpired (Staff/Admin only)
// @Tags Holders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Holder ID"
// @Success 200 {object} response.Response
// @Router /holders/{id}/activate [patch]
func (h *CardHandler) ActivateHolder(c *fiber.Ctx) error {
	return h.setHolderActive(c, true)
}

func (h *CardHandler) setHolderActive(c *fiber.Ctx, active bool) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid holder ID")
	}

	if active {
		err = h.cardService.ReactivateHolder(c.Context(), principalFrom(c), uint(id))
	} else {
		err = h.cardService.DeactivateHolder(c.Context(), principalFrom(c), uint(id))
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to manage holders")
		case errors.Is(err, domain.ErrHolderNotFound):
			return response.NotFound(c, "Holder not found")
		default:
			return response.InternalServerError(c, "Failed to update holder")
		}
	}

	message := "Holder deactivated"
	if active {
		message = "Holder activated"
	}
	return response.Success(c, message, nil)
}

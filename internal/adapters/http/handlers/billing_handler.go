package handlers

import (
	"errors"
	"time"

	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/core/services"
	"ssc-carecard/internal/pkg/pagination"
	"ssc-carecard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// BillingHandler handles billing and discount settings endpoints
type BillingHandler struct {
	billingService  *services.BillingService
	discountService *services.DiscountService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService *services.BillingService, discountService *services.DiscountService) *BillingHandler {
	return &BillingHandler{
		billingService:  billingService,
		discountService: discountService,
	}
}

// PreviewRequest represents a discount preview request
type PreviewRequest struct {
	OriginalAmount decimal.Decimal `json:"original_amount"`
	SiteCode       string          `json:"site_code"`
}

// Preview computes a discount breakdown without committing anything
// @Summary Preview discount
// @Description Resolve the discount for an amount without issuing a receipt
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PreviewRequest true "Amount and optional site code"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /billing/preview [post]
func (h *BillingHandler) Preview(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	breakdown, err := h.discountService.Preview(c.Context(), req.OriginalAmount, req.SiteCode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Original amount must be positive")
		case errors.Is(err, domain.ErrSiteNotFound):
			return response.NotFound(c, "Site not found")
		default:
			return response.InternalServerError(c, "Failed to preview discount")
		}
	}

	return response.Success(c, "Discount preview", fiber.Map{
		"breakdown": breakdown,
	})
}

// CreateTransactionRequest represents a billing commit request
type CreateTransactionRequest struct {
	Serial          string          `json:"serial"`
	SiteCode        string          `json:"site_code"`
	ItemDescription string          `json:"item_description"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	RequestID       string          `json:"request_id"`
}

// CreateTransaction commits a billing transaction
// @Summary Create billing transaction
// @Description Verify the card, resolve the discount, allocate a receipt number and persist the transaction
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateTransactionRequest true "Billing data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /billing/transactions [post]
func (h *BillingHandler) CreateTransaction(c *fiber.Ctx) error {
	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	tx, err := h.billingService.CreateTransaction(c.Context(), principalFrom(c), &services.CreateTransactionInput{
		Serial:          req.Serial,
		SiteCode:        req.SiteCode,
		ItemDescription: req.ItemDescription,
		OriginalAmount:  req.OriginalAmount,
		RequestID:       req.RequestID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to create transactions")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Serial, site code, item description and a positive amount are required")
		case errors.Is(err, domain.ErrCardNotFound):
			return response.ErrorWithReason(c, fiber.StatusNotFound, "Card not found", domain.ReasonCardNotFound)
		case errors.Is(err, domain.ErrCardLost):
			return response.UnprocessableEntity(c, "Card is reported lost", domain.ReasonCardLost)
		case errors.Is(err, domain.ErrCardNotActive):
			return response.UnprocessableEntity(c, "Card is not active", domain.ReasonCardInactive)
		case errors.Is(err, domain.ErrHolderInactive):
			return response.UnprocessableEntity(c, "Holder is inactive", domain.ReasonHolderInactive)
		case errors.Is(err, domain.ErrSiteNotFound):
			return response.NotFound(c, "Site not found")
		case errors.Is(err, domain.ErrSiteInactive):
			return response.UnprocessableEntity(c, "Site is not active", "SITE_INACTIVE")
		case errors.Is(err, domain.ErrSequenceExhausted):
			return response.Conflict(c, "Receipt sequence exhausted for this year")
		case errors.Is(err, domain.ErrStoreUnavailable):
			return response.ServiceUnavailable(c, "Counter store unavailable, try again")
		default:
			return response.InternalServerError(c, "Failed to create transaction")
		}
	}

	return response.Created(c, "Transaction created successfully", fiber.Map{
		"transaction": tx,
	})
}

// GetTransaction returns a transaction by receipt number
// @Summary Get transaction
// @Description Get a billing transaction by receipt number
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param receipt path string true "Receipt number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /billing/transactions/{receipt} [get]
func (h *BillingHandler) GetTransaction(c *fiber.Ctx) error {
	tx, err := h.billingService.GetByReceipt(c.Context(), c.Params("receipt"))
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return response.NotFound(c, "Transaction not found")
		}
		return response.InternalServerError(c, "Failed to get transaction")
	}

	return response.Success(c, "Transaction retrieved successfully", fiber.Map{
		"transaction": tx,
	})
}

// ListTransactions lists transactions
// @Summary List transactions
// @Description List billing transactions, optionally filtered by site code
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param site_code query string false "Filter by site code"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /billing/transactions [get]
func (h *BillingHandler) ListTransactions(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	siteCode := c.Query("site_code")

	txs, total, err := h.billingService.List(c.Context(), siteCode, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list transactions")
	}

	return response.Success(c, "Transactions retrieved successfully", fiber.Map{
		"transactions": txs,
		"meta":         pagination.GetMeta(params, total),
	})
}

// SiteDaySummary returns a site's billing totals for one day
// @Summary Site daily summary
// @Description Aggregate transaction count and amounts for a site on a given day
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param code path string true "Site code"
// @Param date query string false "Day (YYYY-MM-DD, default today)"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /billing/sites/{code}/summary [get]
func (h *BillingHandler) SiteDaySummary(c *fiber.Ctx) error {
	day := time.Now()
	if q := c.Query("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			return response.BadRequest(c, "Date must be YYYY-MM-DD")
		}
		day = parsed
	}

	summary, err := h.billingService.SiteDaySummary(c.Context(), c.Params("code"), day)
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			return response.NotFound(c, "Site not found")
		}
		return response.InternalServerError(c, "Failed to summarize site")
	}

	return response.Success(c, "Site summary retrieved successfully", fiber.Map{
		"summary": summary,
	})
}

// ============================================================
// Discount settings
// ============================================================

// UpdateSettingsRequest represents a settings update
type UpdateSettingsRequest struct {
	DefaultRate    decimal.Decimal `json:"default_rate"`
	ApplyToExpired bool            `json:"apply_to_expired"`
}

// GetSettings returns the current discount settings
// @Summary Get discount settings
// @Description Get the program-wide discount configuration
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /settings/discount [get]
func (h *BillingHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.discountService.GetSettings(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to get settings")
	}

	return response.Success(c, "Settings retrieved successfully", fiber.Map{
		"settings": settings,
	})
}

// UpdateSettings replaces the discount settings
// @Summary Update discount settings
// @Description Update the default rate and expired-card policy (Admin only)
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateSettingsRequest true "New settings"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /settings/discount [put]
func (h *BillingHandler) UpdateSettings(c *fiber.Ctx) error {
	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	settings, err := h.discountService.UpdateSettings(c.Context(), principalFrom(c), req.DefaultRate, req.ApplyToExpired)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have permission to change settings")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Default rate must be between 0 and 100")
		default:
			return response.InternalServerError(c, "Failed to update settings")
		}
	}

	return response.Success(c, "Settings updated successfully", fiber.Map{
		"settings": settings,
	})
}

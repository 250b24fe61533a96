package domain

import "errors"

// Common domain errors
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrForbidden      = errors.New("forbidden")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Card errors
var (
	ErrCardNotFound   = errors.New("card not found")
	ErrCardNotActive  = errors.New("card is not active")
	ErrCardExpired    = errors.New("card has expired")
	ErrCardLost       = errors.New("card is reported lost")
	ErrHolderNotFound = errors.New("card holder not found")
	ErrHolderInactive = errors.New("card holder is inactive")
)

// Site errors
var (
	ErrSiteNotFound = errors.New("site not found")
	ErrSiteInactive = errors.New("site is not active")
)

// Billing errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSequenceExhausted   = errors.New("identifier sequence exhausted for this period")
	ErrStoreUnavailable    = errors.New("counter store unavailable")
)

// Verify reason codes returned by card verification.
// Downstream billing screens branch on these ("expired vs inactive vs not
// found"), so they are part of the API contract, not display strings.
const (
	ReasonCardNotFound   = "CARD_NOT_FOUND"
	ReasonHolderInactive = "HOLDER_INACTIVE"
	ReasonCardInactive   = "CARD_INACTIVE"
	ReasonCardLost       = "CARD_LOST"
	ReasonCardExpired    = "CARD_EXPIRED"
)

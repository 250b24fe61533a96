package serial

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Identifier prefixes. These are wire contracts consumed by card printers and
// receipt displays; changing them requires a migration plan for issued values.
const (
	CardPrefix    = "SSC"
	ReceiptPrefix = "INV"
	SitePrefix    = "LAB"
)

// Field widths for the zero-padded counter segments
const (
	cardSeqWidth    = 4 // NNNN in SSC-YYMM-SSSS-NNNN
	receiptSeqWidth = 5 // NNNNN in INV-YYYY-NNNNN
	siteCodeLen     = 4 // XXXX in LAB-XXXX
)

var (
	// ErrFieldOverflow means a counter value no longer fits its padded field.
	// Truncating would collide with an already-issued identifier, so the
	// formatter refuses instead.
	ErrFieldOverflow = errors.New("counter value exceeds identifier field width")

	// ErrBadTownCode means the town code is not exactly 4 digits
	ErrBadTownCode = errors.New("town code must be exactly 4 digits")

	ErrBadSequence = errors.New("sequence value must be positive")
)

var townCodeRe = regexp.MustCompile(`^[0-9]{4}$`)

// ValidTownCode reports whether code can appear in a card serial
func ValidTownCode(code string) bool {
	return townCodeRe.MatchString(code)
}

// CardSerial formats a card serial number: SSC-YYMM-SSSS-NNNN.
// Pure and deterministic; callers obtain seq from the counter store for the
// scope returned by CardScopeKey.
func CardSerial(issued time.Time, townCode string, seq int64) (string, error) {
	if !ValidTownCode(townCode) {
		return "", fmt.Errorf("%w: %q", ErrBadTownCode, townCode)
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: %d", ErrBadSequence, seq)
	}
	if seq > maxForWidth(cardSeqWidth) {
		return "", fmt.Errorf("%w: %d > %d", ErrFieldOverflow, seq, maxForWidth(cardSeqWidth))
	}
	return fmt.Sprintf("%s-%s-%s-%0*d", CardPrefix, issued.Format("0601"), townCode, cardSeqWidth, seq), nil
}

// ReceiptNumber formats a billing receipt number: INV-YYYY-NNNNN
func ReceiptNumber(issued time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("%w: %d", ErrBadSequence, seq)
	}
	if seq > maxForWidth(receiptSeqWidth) {
		return "", fmt.Errorf("%w: %d > %d", ErrFieldOverflow, seq, maxForWidth(receiptSeqWidth))
	}
	return fmt.Sprintf("%s-%s-%0*d", ReceiptPrefix, issued.Format("2006"), receiptSeqWidth, seq), nil
}

// CardScopeKey returns the counter scope for card serials: one counter per
// (year, month, town)
func CardScopeKey(issued time.Time, townCode string) string {
	return fmt.Sprintf("cards/%s/%s", issued.Format("0601"), townCode)
}

// ReceiptScopeKey returns the counter scope for receipts: one counter per year
func ReceiptScopeKey(issued time.Time) string {
	return fmt.Sprintf("receipts/%s", issued.Format("2006"))
}

// siteCodeAlphabet omits 0/O and 1/I to keep codes unambiguous when read
// over the phone
const siteCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// RandomSiteCode generates a candidate partner site code: LAB-XXXX.
// Unlike serials and receipts this is not counter-derived; the caller must
// check-then-insert and retry on collision.
func RandomSiteCode() (string, error) {
	buf := make([]byte, siteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	code := make([]byte, siteCodeLen)
	for i, b := range buf {
		code[i] = siteCodeAlphabet[int(b)%len(siteCodeAlphabet)]
	}
	return fmt.Sprintf("%s-%s", SitePrefix, code), nil
}

func maxForWidth(width int) int64 {
	max := int64(1)
	for i := 0; i < width; i++ {
		max *= 10
	}
	return max - 1
}
